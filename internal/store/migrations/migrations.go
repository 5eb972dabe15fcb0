// Package migrations embeds the ordered SQL migration steps applied by goose
// when a replica database is opened.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
