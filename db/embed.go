// Package db embeds the goose SQL migrations, one directory per dialect.
package db

import "embed"

//go:embed migrations
var Migrations embed.FS
