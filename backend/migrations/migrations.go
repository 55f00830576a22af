// Package migrations embeds the SQL schemas applied by the services at
// start-up.
package migrations

import "embed"

// Journal holds the asset journal schema under the "journal" directory.
//
//go:embed journal/*.sql
var Journal embed.FS

const JournalDir = "journal"
