package migrations

import "embed"

// FS contains embedded SQLite migrations for users and archived matches.
//
//go:embed *.sql
var FS embed.FS
