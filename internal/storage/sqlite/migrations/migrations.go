// Package migrations embeds the SQL migration files for the activity
// ledger SQLite store.
package migrations

import "embed"

// FS contains the embedded migration files, applied in name order.
//
//go:embed *.sql
var FS embed.FS
