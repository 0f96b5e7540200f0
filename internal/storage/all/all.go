// Package all registers every storage backend. Import it for side effects.
package all

import (
	_ "tripload/internal/storage/mssql"
	_ "tripload/internal/storage/mysql"
	_ "tripload/internal/storage/postgres"
	_ "tripload/internal/storage/sqlite"
)
