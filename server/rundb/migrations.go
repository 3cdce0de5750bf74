package rundb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE run(
			id INTEGER PRIMARY KEY,
			created_at INT NOT NULL,
			source_file TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			width INT NOT NULL,
			height INT NOT NULL,
			tile_size INT NOT NULL,
			subdivisions INT NOT NULL,
			smooth INT NOT NULL,
			duration_msec INT NOT NULL,
			report TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX idx_run_created_at ON run (created_at);
	`))

	return migs
}
