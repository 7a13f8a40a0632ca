package binder

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrifirman/go-print-assets/internal/assets"
)

// Repo persists render results, one immutable row per (order_id, item_index).
// Inserts use ON CONFLICT DO NOTHING: a retry that re-renders the same item
// overwrites the same blob key and leaves the first row in place.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) SaveResults(ctx context.Context, results []assets.RenderResult) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, res := range results {
		if res.Skipped {
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO render_results(order_id, item_index,
			    source_key, source_tier, output_key, output_tier,
			    width, height, size_bytes, degraded)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (order_id, item_index) DO NOTHING`,
			res.OrderID, res.ItemIndex,
			res.Source.Key, string(res.Source.Tier),
			res.Output.Key, string(res.Output.Tier),
			res.Width, res.Height, res.SizeBytes, res.Degraded,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]assets.RenderResult, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, item_index,
		       source_key, source_tier, output_key, output_tier,
		       width, height, size_bytes, degraded
		FROM render_results
		WHERE order_id = $1
		ORDER BY item_index`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assets.RenderResult
	for rows.Next() {
		var res assets.RenderResult
		var srcTier, outTier string
		if err := rows.Scan(&res.OrderID, &res.ItemIndex,
			&res.Source.Key, &srcTier, &res.Output.Key, &outTier,
			&res.Width, &res.Height, &res.SizeBytes, &res.Degraded); err != nil {
			return nil, err
		}
		res.Source.Tier = assets.Tier(srcTier)
		res.Output.Tier = assets.Tier(outTier)
		res.Output.PrintReady = !res.Degraded
		out = append(out, res)
	}
	return out, rows.Err()
}
