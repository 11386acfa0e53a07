// Package migrations embeds the SQL migration files into the binary.
//
// The clinic runs unattended; migrations must work without loose SQL
// files on disk, so they are compiled into the executable.
package migrations

import (
	"embed"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // files are at root of embedded FS
}
