package db

import "embed"

// MigrationFS embeds the outbox, mapping and operator audit migrations from internal/db/migrations.
// Used by the migrate runner (cmd/migrate and syncctl migrate).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
