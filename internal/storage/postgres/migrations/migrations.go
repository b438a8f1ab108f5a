// Package migrations embeds the SQL schema for the Postgres cart storage.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
