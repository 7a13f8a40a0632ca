package renderworker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/binder"
	kafkax "github.com/andrifirman/go-print-assets/internal/kafka"
	"github.com/andrifirman/go-print-assets/internal/redisx"
)

// ResultsStore persists a rendered batch. Satisfied by binder.Repo.
type ResultsStore interface {
	SaveResults(ctx context.Context, results []assets.RenderResult) error
}

// Deduper tracks processed event ids. Satisfied by redisx.Deduper.
type Deduper interface {
	Seen(ctx context.Context, eventID string) bool
	Mark(ctx context.Context, eventID string)
}

// Service consumes payment-authorized events and materializes print assets
// for the paid order. The topic is the payment contract: nothing lands here
// before the order's payment-confirmed transition.
type Service struct {
	Binder      *binder.Binder
	Results     ResultsStore
	Dedup       Deduper
	Redis       *redis.Client // read-side cache only
	Producer    *kafkax.Producer
	ServiceName string
	Log         *slog.Logger
}

// HandlePaymentAuthorized is installed as the consumer handler. The dedup
// mark is written last: a batch that fails to persist or announce stays
// unmarked, so the uncommitted offset gets the whole event retried. The
// result insert is conflict-free on retry, so re-running is safe.
func (s *Service) HandlePaymentAuthorized(ctx context.Context, m kafkago.Message) error {
	var env assets.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != assets.EventPaymentAuthorized {
		return nil // ignore
	}
	if s.Dedup.Seen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[assets.PaymentAuthorizedPayload](env.Payload)
	if err != nil {
		return err
	}

	s.Log.Info("rendering order assets",
		"order_id", p.OrderID, "items", len(p.Items), "trace_id", env.TraceID)

	results := s.Binder.RenderOrderItems(ctx, p.OrderID, p.Items)

	if err := s.Results.SaveResults(ctx, results); err != nil {
		return fmt.Errorf("persist results for order %s: %w", p.OrderID, err)
	}

	// refresh the read-side cache
	if b, err := json.Marshal(results); err == nil {
		key := fmt.Sprintf(redisx.KeyOrderAssets, p.OrderID)
		_ = s.Redis.Set(ctx, key, b, redisx.TTLAssetsCache).Err()
	}

	if err := s.publishRendered(p.OrderID, results, env.TraceID); err != nil {
		return err
	}

	s.Dedup.Mark(ctx, env.EventID)
	return nil
}

func (s *Service) publishRendered(orderID string, results []assets.RenderResult, trace string) error {
	ev := assets.Envelope{
		EventID:       uuid.NewString(),
		EventType:     assets.EventAssetsRendered,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(assets.AssetsRenderedPayload{OrderID: orderID, Results: results}),
	}
	s.Producer.Publish(assets.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(assets.EventAssetsRendered)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
