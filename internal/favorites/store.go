package favorites

import (
	"context"
	"errors"

	"github.com/andrifirman/go-print-assets/internal/assets"
)

// ErrDuplicate: the persistence layer's uniqueness constraint rejected an
// insert because another record already claims one of the references. The
// losing writer of a concurrent save re-reads and returns the winner.
var ErrDuplicate = errors.New("saved asset already exists")

// Store is the persistence port of the ledger. Insert must be atomic with
// respect to the (owner, reference) uniqueness constraint; application-level
// locking alone is not enough under concurrent savers.
type Store interface {
	// FindByRefs returns the owner's asset whose recorded references
	// intersect refs, or assets.ErrNotFound.
	FindByRefs(ctx context.Context, ownerID string, refs []string) (assets.SavedAsset, error)
	// Insert persists the asset and its reference set; ErrDuplicate when a
	// (owner, reference) pair is already claimed.
	Insert(ctx context.Context, a assets.SavedAsset, refs []string) error
	// List returns the owner's assets, most recent first.
	List(ctx context.Context, ownerID string) ([]assets.SavedAsset, error)
	// Get returns an asset by id regardless of owner, or assets.ErrNotFound.
	Get(ctx context.Context, assetID string) (assets.SavedAsset, error)
	// Delete removes the record and its reference rows.
	Delete(ctx context.Context, assetID string) error
}
