// Package migrations embeds SQL migrations for the local snapshot store.
package migrations

import "embed"

// FS holds the migration files applied by goose.
//
//go:embed *.sql
var FS embed.FS
