// Package migrations holds the SQL schema of the fiscal database.
package migrations

import "embed"

// FS contains every *.up.sql and *.down.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
