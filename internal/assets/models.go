package assets

import "time"

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// DraftHandle is an ephemeral pointer to an unconfirmed design. It is
// created once, never mutated, and stops resolving after the registry TTL.
type DraftHandle struct {
	ID         string
	Source     Ref
	Visibility Visibility
	CreatedAt  time.Time
}

// SavedAsset is a favorite: a design copied into the saved tier, scoped to
// its owner and deduplicated across every reference that can alias it.
type SavedAsset struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	Name       string            `json:"name"`
	Preview    Ref               `json:"preview"`
	PrintReady *Ref              `json:"print_ready,omitempty"`
	ProductID  string            `json:"product_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SourceRefs lists every reference recorded for dedup: the refs the asset
// was saved from plus the refs it now lives at.
func (a SavedAsset) SourceRefs() []string {
	out := []string{a.Preview.Key}
	if a.PrintReady != nil {
		out = append(out, a.PrintReady.Key)
	}
	return out
}

// OrderItem is one line of a paid order, as carried on the payment event.
type OrderItem struct {
	Index     int    `json:"index"`
	SourceRef string `json:"source_reference"`
	ProductID string `json:"product_id,omitempty"`
	Qty       int    `json:"qty"`
	// PrintReady marks items whose reference already carries print-quality
	// bytes; those skip re-rendering.
	PrintReady bool `json:"print_ready,omitempty"`
}

// RenderResult is the outcome of rendering one order item. Exactly one row
// exists per (order_id, item_index); retries hit the same deterministic
// output key and the same row.
type RenderResult struct {
	OrderID   string `json:"order_id"`
	ItemIndex int    `json:"item_index"`
	Source    Ref    `json:"source"`
	Output    Ref    `json:"output"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
	Degraded  bool   `json:"degraded"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// SizeSpec is the target raster size for one product.
type SizeSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
