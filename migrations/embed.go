// Package migrations embeds the warehouse SQL migrations so the etl binary
// can apply them without a migrations directory on disk.
package migrations

import "embed"

// FS holds the numbered golang-migrate up and down files
//
//go:embed *.sql
var FS embed.FS
