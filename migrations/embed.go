// Package migrations embeds the goose SQL migrations applied at store startup.
package migrations

import "embed"

// FS holds the versioned SQL migration files.
//
//go:embed *.sql
var FS embed.FS
