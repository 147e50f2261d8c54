package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/foliage-cms/foliage/database"
)

// Bootstrap applies the CMS DDL in a single transaction, in this order:
//  1. cms/pages.sql
//  2. cms/content.sql
//  3. cms/sites.sql
//
// SQL is embedded at build time so binaries stay self-contained. The helper is
// idempotent and intended for first-run setup and tests.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap: pool is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.PagesSQL)...)
	statements = append(statements, splitStatements(sqlassets.ContentSQL)...)
	statements = append(statements, splitStatements(sqlassets.SitesSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func splitStatements(raw string) []string {
	parts := strings.Split(raw, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		stmt := strings.TrimSpace(part)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

// isUniqueViolation reports whether err is a postgres unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
