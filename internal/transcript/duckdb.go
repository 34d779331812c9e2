package transcript

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	dbInstance *sql.DB
	dbOnce     sync.Once
	dbErr      error
)

// getDB returns the shared in-memory DuckDB connection used to query the
// archive files
func getDB() (*sql.DB, error) {
	dbOnce.Do(func() {
		dbInstance, dbErr = openDuckDB()
	})
	return dbInstance, dbErr
}

func openDuckDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	// DuckDB works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// json is bundled with most builds; INSTALL only matters when it is not
	if _, err := db.Exec("INSTALL json"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to install JSON extension: %w", err)
	}
	if _, err := db.Exec("LOAD json"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load JSON extension: %w", err)
	}
	return db, nil
}

// readJSON builds the table function reading archive records from pattern
func readJSON(pattern string) string {
	return fmt.Sprintf(`read_json('%s',
			format = 'newline_delimited',
			columns = {
				transcript_id: 'VARCHAR',
				seq: 'INTEGER',
				role: 'VARCHAR',
				content: 'VARCHAR',
				archived_at: 'VARCHAR'
			}
		)`, strings.ReplaceAll(pattern, "'", "''"))
}
