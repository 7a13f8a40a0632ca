package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/sizes"
	"github.com/andrifirman/go-print-assets/internal/tierstore"
)

// Engine renders one source into the order tier at the product's size
// contract. Rendering is deterministic: the same source and contract produce
// the same bytes on the same output key, so retries overwrite rather than
// accumulate. Failures never raise; they produce a degraded result so one bad
// asset cannot block an order.
type Engine struct {
	Tiers    *tierstore.Store
	Contract *sizes.Contract
	Timeout  time.Duration
	DPI      int
	Log      *slog.Logger
}

// Context identifies the order item being rendered.
type Context struct {
	OrderID   string
	ItemIndex int
	ProductID string
}

// OutputKey is the deterministic order-tier key for (orderID, itemIndex).
func OutputKey(orderID string, itemIndex int) string {
	return fmt.Sprintf("orders/%s/item-%d.png", orderID, itemIndex)
}

// NeedsRendering reports whether a reference still needs print rendering.
// Order-tier references and references already marked print-ready do not.
func NeedsRendering(ref assets.Ref) bool {
	return ref.Tier != assets.TierOrder && !ref.PrintReady
}

// Render resamples src to the contract size (contain, no cropping, Lanczos),
// preserves transparency, stamps the print DPI, and writes the result under
// OutputKey. A hard wall-clock bound applies; on timeout or any failure the
// result is degraded: Output falls back to src and SizeBytes is zero.
func (e *Engine) Render(ctx context.Context, src assets.Ref, rc Context) assets.RenderResult {
	spec := e.Contract.Resolve(rc.ProductID)

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	out, err := e.renderBounded(ctx, src, spec, rc)
	if err != nil {
		e.Log.Error("render degraded",
			"order_id", rc.OrderID, "item", rc.ItemIndex,
			"source", src.Key, "err", err)
		return assets.RenderResult{
			OrderID:   rc.OrderID,
			ItemIndex: rc.ItemIndex,
			Source:    src,
			Output:    src,
			Degraded:  true,
		}
	}
	return out
}

// renderBounded runs the decode/resample pipeline in its own goroutine so the
// CPU-bound part still honors the deadline.
func (e *Engine) renderBounded(ctx context.Context, src assets.Ref, spec assets.SizeSpec, rc Context) (assets.RenderResult, error) {
	type outcome struct {
		res assets.RenderResult
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := e.renderOnce(ctx, src, spec, rc)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return assets.RenderResult{}, fmt.Errorf("render timed out after %s: %w", e.Timeout, ctx.Err())
	}
}

func (e *Engine) renderOnce(ctx context.Context, src assets.Ref, spec assets.SizeSpec, rc Context) (assets.RenderResult, error) {
	rcBody, _, err := e.Tiers.Open(ctx, src)
	if err != nil {
		return assets.RenderResult{}, err
	}
	raw, err := io.ReadAll(rcBody)
	rcBody.Close()
	if err != nil {
		return assets.RenderResult{}, fmt.Errorf("read source: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return assets.RenderResult{}, fmt.Errorf("decode source: %w", err)
	}

	// contain: shrink-or-grow to fit inside the contract, then center on a
	// transparent canvas of exactly the contract size
	fitted := imaging.Fit(img, spec.Width, spec.Height, imaging.Lanczos)
	canvas := imaging.New(spec.Width, spec.Height, color.NRGBA{})
	final := imaging.PasteCenter(canvas, fitted)

	encoded, err := encodePNGWithDPI(final, e.DPI)
	if err != nil {
		return assets.RenderResult{}, fmt.Errorf("encode output: %w", err)
	}

	key := OutputKey(rc.OrderID, rc.ItemIndex)
	ref, n, err := e.Tiers.Upload(ctx, key, assets.TierOrder, "image/png", bytes.NewReader(encoded))
	if err != nil {
		return assets.RenderResult{}, err
	}
	ref.PrintReady = true

	return assets.RenderResult{
		OrderID:   rc.OrderID,
		ItemIndex: rc.ItemIndex,
		Source:    src,
		Output:    ref,
		Width:     spec.Width,
		Height:    spec.Height,
		SizeBytes: n,
	}, nil
}
