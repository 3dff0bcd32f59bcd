// Package all links every source backend into the binary.
//
// Backends register themselves with the source factory from init functions,
// so a command only has to blank-import this package to accept any of the
// kinds below in its configuration:
//
//	postgres              pgx connection pool
//	sqlite                modernc.org/sqlite via database/sql
//	mysql                 go-sql-driver/mysql via database/sql
//	mssql, sqlserver      go-mssqldb via database/sql
//	csv                   a local CSV file, see csvfile
//
// Commands that want a smaller binary can import individual backend
// packages instead.
package all

import (
	_ "recordcsv/internal/source/csvfile"
	_ "recordcsv/internal/source/postgres"
	_ "recordcsv/internal/source/sqldb"
)
