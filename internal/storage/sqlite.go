package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // CGO-free SQLite driver
)

// DB is the landing-zone store backed by SQLite.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens (and creates if missing) the landing zone at path.
func OpenSQLite(path string) (*DB, error) {
	// Pragmas via DSN keep it portable with the modernc driver.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	c, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{conn: c}, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// validLZTables whitelists every landing-zone table that carries a run_pk
// column. Dynamic SQL (collection deletes, bulk inserts, schema checks) only
// ever interpolates names from this set.
var validLZTables = map[string]bool{
	"lz_tool_runs":                true,
	"lz_layout_files":             true,
	"lz_layout_directories":       true,
	"lz_scc_file_metrics":         true,
	"lz_lizard_file_metrics":      true,
	"lz_lizard_function_metrics":  true,
	"lz_semgrep_smells":           true,
	"lz_gitleaks_secrets":         true,
	"lz_roslyn_violations":        true,
	"lz_sonarqube_issues":         true,
	"lz_sonarqube_metrics":        true,
	"lz_trivy_targets":            true,
	"lz_trivy_vulnerabilities":    true,
	"lz_trivy_iac_misconfigs":     true,
	"lz_git_sizer_metrics":        true,
	"lz_git_sizer_violations":     true,
	"lz_git_sizer_lfs_candidates": true,
	"lz_git_fame_authors":         true,
	"lz_git_fame_summary":         true,
}

// ValidateTableName rejects any table name outside the landing-zone
// whitelist before it reaches dynamic SQL.
func ValidateTableName(table string) error {
	if !validLZTables[table] {
		return fmt.Errorf("invalid landing zone table name: %q", table)
	}
	return nil
}

// EnsureSchema creates the core tables on first use. If an existing database
// has lz_tool_runs but no lz_collection_runs it predates the collection-run
// model and must be migrated by hand, so we refuse it.
func (db *DB) EnsureSchema() error {
	toolRuns, err := db.tableExists("lz_tool_runs")
	if err != nil {
		return err
	}
	if toolRuns {
		collections, err := db.tableExists("lz_collection_runs")
		if err != nil {
			return err
		}
		if !collections {
			return fmt.Errorf("lz_collection_runs missing: apply the core schema before ingesting")
		}
		return nil
	}
	_, err = db.conn.Exec(coreSchema)
	return err
}

const coreSchema = `
CREATE TABLE IF NOT EXISTS lz_collection_runs (
  collection_run_id TEXT PRIMARY KEY,
  repo_id      TEXT NOT NULL,
  run_id       TEXT NOT NULL,
  branch       TEXT,
  "commit"     TEXT NOT NULL,
  started_at   TEXT NOT NULL,            -- RFC3339Nano
  completed_at TEXT,
  status       TEXT NOT NULL             -- running|completed|failed
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_collection_repo_commit
  ON lz_collection_runs(repo_id, "commit");

CREATE TABLE IF NOT EXISTS lz_tool_runs (
  run_pk            INTEGER PRIMARY KEY AUTOINCREMENT,
  collection_run_id TEXT NOT NULL,
  repo_id           TEXT NOT NULL,
  run_id            TEXT NOT NULL,
  tool_name         TEXT NOT NULL,
  tool_version      TEXT,
  schema_version    TEXT,
  branch            TEXT,
  "commit"          TEXT,
  timestamp         TEXT NOT NULL,
  FOREIGN KEY(collection_run_id) REFERENCES lz_collection_runs(collection_run_id)
);

CREATE INDEX IF NOT EXISTS idx_tool_runs_collection ON lz_tool_runs(collection_run_id);
CREATE INDEX IF NOT EXISTS idx_tool_runs_tool ON lz_tool_runs(collection_run_id, tool_name);

CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT UNIQUE NOT NULL,
  pass_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'viewer',
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
  token TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  expires_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS audit (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  username TEXT,
  action TEXT NOT NULL,
  resource TEXT,
  meta_json TEXT
);
`

func (db *DB) tableExists(name string) (bool, error) {
	var one int
	err := db.conn.QueryRow(
		`SELECT 1 FROM sqlite_master WHERE type='table' AND name = ?`, name,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// EnsureLZTables executes each DDL statement whose table does not exist yet
// and returns the names it created. Adapters own their DDL; the whitelist
// still gates the names.
func (db *DB) EnsureLZTables(ddl map[string]string) ([]string, error) {
	var created []string
	for table, stmt := range ddl {
		if err := ValidateTableName(table); err != nil {
			return created, err
		}
		exists, err := db.tableExists(table)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if _, err := db.conn.Exec(stmt); err != nil {
			return created, fmt.Errorf("create %s: %w", table, err)
		}
		created = append(created, table)
	}
	return created, nil
}

// ValidateLZSchema checks that each table exposes the expected columns with
// the expected declared types. Returns one message per violation.
func (db *DB) ValidateLZSchema(want map[string]map[string]string) ([]string, error) {
	var errs []string
	for table, cols := range want {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		exists, err := db.tableExists(table)
		if err != nil {
			return nil, err
		}
		if !exists {
			errs = append(errs, fmt.Sprintf("table %s missing", table))
			continue
		}
		actual, err := db.columnTypes(table)
		if err != nil {
			return nil, err
		}
		for col, typ := range cols {
			got, ok := actual[col]
			if !ok {
				errs = append(errs, fmt.Sprintf("%s.%s missing", table, col))
				continue
			}
			if !strings.EqualFold(got, typ) {
				errs = append(errs, fmt.Sprintf("%s.%s has type %s, want %s", table, col, got, typ))
			}
		}
	}
	return errs, nil
}

// columnTypes returns declared column types for a whitelisted table.
func (db *DB) columnTypes(table string) (map[string]string, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		out[name] = typ
	}
	return out, rows.Err()
}

// bulkInsert writes rows into a whitelisted table in one transaction using a
// prepared statement.
func bulkInsert[T any](db *DB, table string, cols []string, rows []T, bind func(T) []any) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ValidateTableName(table); err != nil {
		return err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders,
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(bind(r)...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}
