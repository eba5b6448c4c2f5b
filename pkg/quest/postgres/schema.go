// Package postgres stores quest packages in PostgreSQL.
//
// Each package is kept as one row holding its saved archive, so a package read
// back with [Store.Get] goes through the same codec as a package read from
// disk. Rows also carry the package's default language and a BLAKE3 checksum
// of the archive, which lets [Store.Put] skip writes that change nothing.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	changed, _ := store.Put(ctx, pkg)
//	pkg, _ = store.Get(ctx, "village")
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlPackages = `
CREATE TABLE IF NOT EXISTS quest_packages (
    name              TEXT         PRIMARY KEY,
    default_language  TEXT         NOT NULL DEFAULT '',
    checksum          BYTEA        NOT NULL,
    archive           BYTEA        NOT NULL,
    updated_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_quest_packages_updated_at
    ON quest_packages (updated_at);
`

// Migrate creates the quest_packages table if it does not exist. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlPackages); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
