package db

import "embed"

// EmbedMigrations holds the audit store's SQL migrations.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
