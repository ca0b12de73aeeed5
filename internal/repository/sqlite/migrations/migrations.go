// Package migrations holds the embedded SQLite schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
