// Package migrations holds the postgres schema as golang-migrate files.
package migrations

import "embed"

// FS contains every *.sql migration, embedded into the binaries
//
//go:embed *.sql
var FS embed.FS
