package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ProductRepository updates catalog rows owned by the storefront.
type ProductRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db, now: time.Now}
}

// MarkSold flags a beat as sold by key, or by a case-insensitive title match
// when no key is known. It returns the number of rows updated.
func (r *ProductRepository) MarkSold(ctx context.Context, key, title string) (int64, error) {
	now := r.now().UTC()

	var (
		res sql.Result
		err error
	)
	switch {
	case key != "":
		res, err = r.db.ExecContext(ctx,
			`UPDATE beats SET sold = true, sold_at = $2 WHERE id = $1`, key, now)
	case strings.TrimSpace(title) != "":
		res, err = r.db.ExecContext(ctx,
			`UPDATE beats SET sold = true, sold_at = $2 WHERE title ILIKE $1 ESCAPE '\'`, escapeLike(strings.TrimSpace(title)), now)
	default:
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to mark beat sold: %w", err)
	}
	return res.RowsAffected()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
