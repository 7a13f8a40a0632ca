package assets

// Tier is an explicit storage-tier tag carried on every reference. Membership
// is never inferred from key substrings.
type Tier string

const (
	// TierExternal: a raw URL outside our storage (generator output).
	TierExternal Tier = "external"
	// TierDraft: ephemeral, unconfirmed, evicted by TTL.
	TierDraft Tier = "draft"
	// TierSaved: permanent, owner-scoped, reached via deduplicated copy.
	TierSaved Tier = "saved"
	// TierOrder: print-quality output bound to (order, item).
	TierOrder Tier = "order"
)

// Ref is a tagged reference to stored bytes. Key is a blob key for managed
// tiers and a URL for external/draft sources. PrintReady marks references
// that already carry print-quality bytes regardless of tier.
type Ref struct {
	Key        string `json:"key"`
	Tier       Tier   `json:"tier"`
	PrintReady bool   `json:"print_ready,omitempty"`
}

func (r Ref) IsZero() bool { return r.Key == "" }

// ExternalRef tags a raw URL coming in from outside.
func ExternalRef(url string) Ref { return Ref{Key: url, Tier: TierExternal} }
