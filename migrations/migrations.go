// Package migrations embeds the goose SQL migrations so the migrate command
// and integration tests can apply them without a checkout of this directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
