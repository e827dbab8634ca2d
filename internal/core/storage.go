package core

import (
	"fmt"
	"os"

	"echocore/internal/archive"
	"echocore/internal/infra/archive/memory"
	"echocore/internal/infra/archive/postgres"
	"echocore/internal/infra/archive/sqlite"
)

// OpenArchiveStore selects an archive backend using environment
// variables. Defaults to sqlite when unset.
//
//	ECHOCORE_ARCHIVE_DRIVER: memory|sqlite|postgres (default sqlite)
//	ECHOCORE_SQLITE_PATH: path to the sqlite file (default ./echocore.db)
//	ECHOCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenArchiveStore() (archive.Store, error) {
	driver := os.Getenv("ECHOCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch archive.Driver(driver) {
	case StorageMemory:
		return memory.New(), nil
	case StorageSQLite:
		return sqlite.New(os.Getenv("ECHOCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.New(os.Getenv("ECHOCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
