package tierstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/blob"
	"github.com/andrifirman/go-print-assets/internal/fetch"
)

// Store moves assets between tiers. Copies are idempotent: the destination
// key is derived deterministically from the source, and an existing object is
// returned as-is instead of being duplicated.
type Store struct {
	Blobs   blob.Store
	Fetcher *fetch.Client
	Log     *slog.Logger
}

func New(blobs blob.Store, fetcher *fetch.Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{Blobs: blobs, Fetcher: fetcher, Log: log}
}

// Copy duplicates src into target byte-for-byte and returns the new tagged
// reference. A source already in the target tier is returned unchanged. A
// vanished source fails with assets.ErrSourceExpired.
func (s *Store) Copy(ctx context.Context, src assets.Ref, target assets.Tier, ownerID string) (assets.Ref, error) {
	if src.Tier == target {
		return src, nil
	}

	key := destKey(target, ownerID, src)

	// retry-safe: a previous copy of the same source landed on the same key
	if _, err := s.Blobs.Stat(ctx, key); err == nil {
		return assets.Ref{Key: key, Tier: target, PrintReady: src.PrintReady}, nil
	} else if !errors.Is(err, blob.ErrNotExist) {
		return assets.Ref{}, fmt.Errorf("stat %s: %w", key, err)
	}

	rc, contentType, err := s.Open(ctx, src)
	if err != nil {
		return assets.Ref{}, err
	}
	defer rc.Close()

	if _, err := s.Blobs.Put(ctx, key, contentType, rc); err != nil {
		return assets.Ref{}, fmt.Errorf("copy %s -> %s: %w", src.Key, key, err)
	}
	return assets.Ref{Key: key, Tier: target, PrintReady: src.PrintReady}, nil
}

// Upload writes bytes directly into a tier under an explicit key. Used by the
// render engine with its deterministic per-(order,item) key so retries
// overwrite rather than accumulate.
func (s *Store) Upload(ctx context.Context, key string, tier assets.Tier, contentType string, r io.Reader) (assets.Ref, int64, error) {
	info, err := s.Blobs.Put(ctx, key, contentType, r)
	if err != nil {
		return assets.Ref{}, 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return assets.Ref{Key: key, Tier: tier}, info.Size, nil
}

// Open returns the byte stream and content type behind a reference: a blob
// read for managed tiers, a bounded fetch for external/draft sources.
func (s *Store) Open(ctx context.Context, ref assets.Ref) (io.ReadCloser, string, error) {
	switch ref.Tier {
	case assets.TierExternal, assets.TierDraft:
		rc, ct, err := s.Fetcher.Get(ctx, ref.Key)
		if errors.Is(err, fetch.ErrGone) {
			return nil, "", fmt.Errorf("%s: %w", ref.Key, assets.ErrSourceExpired)
		}
		return rc, ct, err
	default:
		rc, ct, err := s.Blobs.Get(ctx, ref.Key)
		if errors.Is(err, blob.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w", ref.Key, assets.ErrSourceExpired)
		}
		return rc, ct, err
	}
}

// Delete removes the underlying object, best-effort. Failures are logged and
// never surface: physical cleanup must not fail the caller's operation.
func (s *Store) Delete(ctx context.Context, ref assets.Ref) {
	if ref.IsZero() || ref.Tier == assets.TierExternal {
		return
	}
	if err := s.Blobs.Delete(ctx, ref.Key); err != nil && !errors.Is(err, blob.ErrNotExist) {
		s.Log.Warn("blob delete failed", "key", ref.Key, "tier", string(ref.Tier), "err", err)
	}
}

// destKey derives the copy destination from (tier, owner, source). The same
// source always lands on the same key, which is what makes Copy idempotent
// under concurrent savers.
func destKey(target assets.Tier, ownerID string, src assets.Ref) string {
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(src.Key))
	ext := path.Ext(strings.SplitN(path.Base(src.Key), "?", 2)[0])
	if ext == "" {
		ext = ".png"
	}
	switch target {
	case assets.TierSaved:
		return path.Join("saved", ownerID, sum+ext)
	case assets.TierOrder:
		return path.Join("orders", ownerID, sum+ext)
	default:
		return path.Join("drafts", sum+ext)
	}
}
