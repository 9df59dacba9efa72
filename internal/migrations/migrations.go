// Package migrations embeds the goose SQL migrations defining the regvault
// schema. Migrations are additive only: they create missing tables and
// indexes and never drop existing rows.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
