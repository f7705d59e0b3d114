// Package migrations embeds the goose migrations of the controller schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
