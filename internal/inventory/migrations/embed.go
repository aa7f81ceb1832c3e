// Package migrations embeds the inventory schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
