package sizes

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrifirman/go-print-assets/internal/assets"
)

// Contract maps a product to its target print raster size. Read-only after
// load; unknown products fall back to the default entry.
type Contract struct {
	byProduct map[string]assets.SizeSpec
	def       assets.SizeSpec
}

func NewContract(def assets.SizeSpec, byProduct map[string]assets.SizeSpec) *Contract {
	m := make(map[string]assets.SizeSpec, len(byProduct))
	for k, v := range byProduct {
		m[k] = v
	}
	return &Contract{byProduct: m, def: def}
}

// Load reads per-product print dimensions from the products table.
func Load(ctx context.Context, db *pgxpool.Pool, def assets.SizeSpec) (*Contract, error) {
	rows, err := db.Query(ctx, `SELECT id, print_width_px, print_height_px
                              FROM products
                              WHERE print_width_px > 0 AND print_height_px > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := map[string]assets.SizeSpec{}
	for rows.Next() {
		var id string
		var s assets.SizeSpec
		if err := rows.Scan(&id, &s.Width, &s.Height); err != nil {
			return nil, err
		}
		m[id] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Contract{byProduct: m, def: def}, nil
}

// Resolve returns the configured size for productID, or the default when the
// product is unknown or empty.
func (c *Contract) Resolve(productID string) assets.SizeSpec {
	if productID != "" {
		if s, ok := c.byProduct[productID]; ok {
			return s
		}
	}
	return c.def
}

func (c *Contract) Default() assets.SizeSpec { return c.def }
