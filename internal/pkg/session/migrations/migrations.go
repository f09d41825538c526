// Package migrations embeds the schema of the session database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
