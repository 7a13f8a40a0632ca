package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrifirman/go-print-assets/internal/assets"
)

// Repo is the postgres-backed Store. Dedup atomicity comes from the
// UNIQUE(owner_id, reference) constraint on saved_asset_sources.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const pgUniqueViolation = "23505"

func (r *Repo) FindByRefs(ctx context.Context, ownerID string, refs []string) (assets.SavedAsset, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT DISTINCT a.id, a.owner_id, a.name,
		       a.preview_key, a.preview_tier, a.preview_print_ready,
		       a.print_key, a.print_tier,
		       a.product_id, a.metadata, a.created_at
		FROM saved_assets a
		JOIN saved_asset_sources s ON s.asset_id = a.id
		WHERE s.owner_id = $1 AND s.reference = ANY($2)
		LIMIT 1`, ownerID, refs)
	return scanAsset(row)
}

func (r *Repo) Insert(ctx context.Context, a assets.SavedAsset, refs []string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return err
	}
	var printKey, printTier *string
	if a.PrintReady != nil {
		k, t := a.PrintReady.Key, string(a.PrintReady.Tier)
		printKey, printTier = &k, &t
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO saved_assets(id, owner_id, name,
		    preview_key, preview_tier, preview_print_ready,
		    print_key, print_tier, product_id, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.OwnerID, a.Name,
		a.Preview.Key, string(a.Preview.Tier), a.Preview.PrintReady,
		printKey, printTier, nullable(a.ProductID), meta, a.CreatedAt,
	)
	if err != nil {
		return mapUnique(err)
	}

	for _, ref := range refs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO saved_asset_sources(asset_id, owner_id, reference)
			VALUES ($1,$2,$3)`, a.ID, a.OwnerID, ref); err != nil {
			return mapUnique(err)
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) List(ctx context.Context, ownerID string) ([]assets.SavedAsset, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, owner_id, name,
		       preview_key, preview_tier, preview_print_ready,
		       print_key, print_tier,
		       product_id, metadata, created_at
		FROM saved_assets
		WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assets.SavedAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, assetID string) (assets.SavedAsset, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, owner_id, name,
		       preview_key, preview_tier, preview_print_ready,
		       print_key, print_tier,
		       product_id, metadata, created_at
		FROM saved_assets WHERE id = $1`, assetID)
	return scanAsset(row)
}

func (r *Repo) Delete(ctx context.Context, assetID string) error {
	// sources cascade via FK
	ct, err := r.DB.Exec(ctx, `DELETE FROM saved_assets WHERE id = $1`, assetID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return assets.ErrNotFound
	}
	return nil
}

func scanAsset(row pgx.Row) (assets.SavedAsset, error) {
	var a assets.SavedAsset
	var previewTier string
	var printKey, printTier, productID *string
	var meta []byte
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name,
		&a.Preview.Key, &previewTier, &a.Preview.PrintReady,
		&printKey, &printTier, &productID, &meta, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return assets.SavedAsset{}, assets.ErrNotFound
		}
		return assets.SavedAsset{}, err
	}
	a.Preview.Tier = assets.Tier(previewTier)
	if printKey != nil {
		t := assets.TierSaved
		if printTier != nil {
			t = assets.Tier(*printTier)
		}
		a.PrintReady = &assets.Ref{Key: *printKey, Tier: t, PrintReady: true}
	}
	if productID != nil {
		a.ProductID = *productID
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return assets.SavedAsset{}, fmt.Errorf("metadata: %w", err)
		}
	}
	return a, nil
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
