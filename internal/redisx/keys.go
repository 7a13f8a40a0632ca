package redisx

import "time"

const (
	// Idempotency fast-path for save-to-favorites:
	// idem:fav:save:{owner_id}:{source_hash} -> asset_id
	KeyIdemSave = "idem:fav:save:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cache of rendered assets per order: order_assets:{order_id} -> JSON
	KeyOrderAssets = "order_assets:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
	TTLAssetsCache = 10 * time.Minute
)
