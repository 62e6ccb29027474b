// Package migrations embeds the Postgres schema so binaries can migrate
// without a checkout of the repository.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

// PostgresDir is the directory of Postgres migrations inside the Postgres FS.
const PostgresDir = "postgres"
