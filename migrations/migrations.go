// Package migrations embeds the SQL schema for the Postgres storage driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
