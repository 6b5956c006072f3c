// Package migrations embeds the SQL schema so the server and the test
// harness apply the same DDL.
package migrations

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var Schema string

// Apply runs the embedded schema. The DDL is idempotent, so Apply is safe
// to call on every startup.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
