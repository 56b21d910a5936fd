// Package migrations embeds the SQL schema applied by golang-migrate when
// MIGRATIONS is enabled.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
