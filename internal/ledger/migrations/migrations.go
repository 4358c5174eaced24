// Package migrations embeds the ledger's plain-SQL schema files, applied at
// startup by each backend (no migration framework dependency, matching the
// teacher's own lightweight approach to schema setup).
package migrations

import _ "embed"

//go:embed sqlite.sql
var SQLite string

//go:embed postgres.sql
var Postgres string
