package binder

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/render"
)

// Binder fans one paid order out over the render engine: every line item is
// rendered independently, with bounded parallelism, and a failing item never
// aborts its siblings. Callers invoke it strictly after payment confirmation.
type Binder struct {
	Engine   *render.Engine
	Parallel int
	Log      *slog.Logger
}

func New(engine *render.Engine, parallel int, log *slog.Logger) *Binder {
	if parallel <= 0 {
		parallel = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Binder{Engine: engine, Parallel: parallel, Log: log}
}

// RenderOrderItems renders each item carrying a source reference. The result
// slice is positionally aligned with items regardless of completion order;
// itemless slots stay zero, marked skipped, with a warning logged.
func (b *Binder) RenderOrderItems(ctx context.Context, orderID string, items []assets.OrderItem) []assets.RenderResult {
	results := make([]assets.RenderResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Parallel)

	for i, item := range items {
		if item.SourceRef == "" {
			b.Log.Warn("order item without source reference, skipping",
				"order_id", orderID, "item", i)
			results[i] = assets.RenderResult{OrderID: orderID, ItemIndex: i, Skipped: true}
			continue
		}
		g.Go(func() error {
			src := assets.Ref{Key: item.SourceRef, Tier: assets.TierExternal, PrintReady: item.PrintReady}
			if !render.NeedsRendering(src) {
				results[i] = assets.RenderResult{
					OrderID: orderID, ItemIndex: i, Source: src, Output: src,
				}
				return nil
			}
			results[i] = b.Engine.Render(gctx, src, render.Context{
				OrderID:   orderID,
				ItemIndex: i,
				ProductID: item.ProductID,
			})
			return nil
		})
	}
	// workers never return errors; failures are degraded results
	_ = g.Wait()
	return results
}
