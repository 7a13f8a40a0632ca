package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/tierstore"
)

// Service is the favorites ledger: deduplicated, owner-scoped persistence of
// saved designs on top of the tier store.
type Service struct {
	Store Store
	Tiers *tierstore.Store
	Log   *slog.Logger

	now func() time.Time
}

func NewService(store Store, tiers *tierstore.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{Store: store, Tiers: tiers, Log: log, now: time.Now}
}

type SaveInput struct {
	Name          string
	SourceRef     string
	PrintReadyRef string
	ProductID     string
	Metadata      map[string]string
}

// Save persists the design into the saved tier, once per (owner, source).
// The second return is true when an existing record was found instead of a
// new copy being made, whether sequentially or under a concurrent race.
func (s *Service) Save(ctx context.Context, ownerID string, in SaveInput) (assets.SavedAsset, bool, error) {
	if in.SourceRef == "" {
		return assets.SavedAsset{}, false, errors.New("missing source reference")
	}

	candidates := []string{in.SourceRef}
	if in.PrintReadyRef != "" {
		candidates = append(candidates, in.PrintReadyRef)
	}

	if existing, err := s.Store.FindByRefs(ctx, ownerID, candidates); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, assets.ErrNotFound) {
		return assets.SavedAsset{}, false, err
	}

	preview, err := s.Tiers.Copy(ctx, assets.ExternalRef(in.SourceRef), assets.TierSaved, ownerID)
	if err != nil {
		return assets.SavedAsset{}, false, fmt.Errorf("copy preview: %w", err)
	}

	a := assets.SavedAsset{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      in.Name,
		Preview:   preview,
		ProductID: in.ProductID,
		Metadata:  in.Metadata,
		CreatedAt: s.now().UTC(),
	}
	refs := []string{in.SourceRef, preview.Key}

	if in.PrintReadyRef != "" {
		src := assets.Ref{Key: in.PrintReadyRef, Tier: assets.TierExternal, PrintReady: true}
		pr, err := s.Tiers.Copy(ctx, src, assets.TierSaved, ownerID)
		if err != nil {
			return assets.SavedAsset{}, false, fmt.Errorf("copy print-ready: %w", err)
		}
		a.PrintReady = &pr
		refs = append(refs, in.PrintReadyRef, pr.Key)
	}

	if err := s.Store.Insert(ctx, a, dedupe(refs)); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// concurrent saver won the constraint; their copy landed on the
			// same deterministic key, so nothing here leaked
			s.Log.Info("concurrent save lost the uniqueness race, returning winner",
				"owner_id", ownerID, "source", in.SourceRef)
			winner, ferr := s.Store.FindByRefs(ctx, ownerID, candidates)
			if ferr != nil {
				return assets.SavedAsset{}, false, fmt.Errorf("re-read after duplicate: %w", ferr)
			}
			return winner, true, nil
		}
		return assets.SavedAsset{}, false, err
	}
	return a, false, nil
}

func dedupe(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// List returns the owner's saved assets, most recent first.
func (s *Service) List(ctx context.Context, ownerID string) ([]assets.SavedAsset, error) {
	return s.Store.List(ctx, ownerID)
}

// Delete removes the record after an ownership check, then cleans storage
// best-effort: a failed physical delete never fails the removal.
func (s *Service) Delete(ctx context.Context, ownerID, assetID string) error {
	a, err := s.Store.Get(ctx, assetID)
	if err != nil {
		return err
	}
	if a.OwnerID != ownerID {
		return fmt.Errorf("asset %s: %w", assetID, assets.ErrForbidden)
	}
	if err := s.Store.Delete(ctx, assetID); err != nil {
		return err
	}
	s.Tiers.Delete(ctx, a.Preview)
	if a.PrintReady != nil {
		s.Tiers.Delete(ctx, *a.PrintReady)
	}
	return nil
}
