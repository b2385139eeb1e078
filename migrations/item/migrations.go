// Package item embeds the goose migrations for the Postgres item store.
package item

import "embed"

//go:embed *.sql
var FS embed.FS
