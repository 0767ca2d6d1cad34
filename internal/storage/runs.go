package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

// ErrNotFound is returned when a collection or tool run lookup misses.
var ErrNotFound = errors.New("not found")

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func (db *DB) InsertCollectionRun(run lz.CollectionRun) error {
	var completed any
	if run.CompletedAt != nil {
		completed = fmtTime(*run.CompletedAt)
	}
	_, err := db.conn.Exec(`
		INSERT INTO lz_collection_runs
		  (collection_run_id, repo_id, run_id, branch, "commit", started_at, completed_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CollectionRunID, run.RepoID, run.RunID, run.Branch, run.Commit,
		fmtTime(run.StartedAt), completed, run.Status,
	)
	return err
}

func (db *DB) scanCollectionRun(row *sql.Row) (lz.CollectionRun, error) {
	var run lz.CollectionRun
	var started string
	var completed sql.NullString
	err := row.Scan(&run.CollectionRunID, &run.RepoID, &run.RunID, &run.Branch,
		&run.Commit, &started, &completed, &run.Status)
	if err == sql.ErrNoRows {
		return lz.CollectionRun{}, ErrNotFound
	}
	if err != nil {
		return lz.CollectionRun{}, err
	}
	run.StartedAt = parseTime(started)
	if completed.Valid {
		t := parseTime(completed.String)
		run.CompletedAt = &t
	}
	return run, nil
}

const collectionCols = `collection_run_id, repo_id, run_id, branch, "commit", started_at, completed_at, status`

func (db *DB) GetCollectionRun(id string) (lz.CollectionRun, error) {
	return db.scanCollectionRun(db.conn.QueryRow(
		`SELECT `+collectionCols+` FROM lz_collection_runs WHERE collection_run_id = ?`, id))
}

// GetCollectionRunByRepoCommit finds an existing collection for repo+commit.
func (db *DB) GetCollectionRunByRepoCommit(repoID, commit string) (lz.CollectionRun, error) {
	return db.scanCollectionRun(db.conn.QueryRow(
		`SELECT `+collectionCols+` FROM lz_collection_runs WHERE repo_id = ? AND "commit" = ?`,
		repoID, commit))
}

func (db *DB) ListCollectionRuns(limit, offset int) ([]lz.CollectionRun, error) {
	rows, err := db.conn.Query(
		`SELECT `+collectionCols+` FROM lz_collection_runs
		 ORDER BY started_at DESC, collection_run_id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lz.CollectionRun
	for rows.Next() {
		var run lz.CollectionRun
		var started string
		var completed sql.NullString
		if err := rows.Scan(&run.CollectionRunID, &run.RepoID, &run.RunID, &run.Branch,
			&run.Commit, &started, &completed, &run.Status); err != nil {
			return nil, err
		}
		run.StartedAt = parseTime(started)
		if completed.Valid {
			t := parseTime(completed.String)
			run.CompletedAt = &t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// MarkCollectionStatus sets the terminal (or running) status of a collection.
func (db *DB) MarkCollectionStatus(id, status string, completedAt *time.Time) error {
	var completed any
	if completedAt != nil {
		completed = fmtTime(*completedAt)
	}
	_, err := db.conn.Exec(
		`UPDATE lz_collection_runs SET status = ?, completed_at = ? WHERE collection_run_id = ?`,
		status, completed, id)
	return err
}

// ResetCollectionRun rewinds a collection to running before a replace.
func (db *DB) ResetCollectionRun(id string, startedAt time.Time) error {
	_, err := db.conn.Exec(
		`UPDATE lz_collection_runs
		 SET started_at = ?, completed_at = NULL, status = 'running'
		 WHERE collection_run_id = ?`,
		fmtTime(startedAt), id)
	return err
}

// DeleteCollectionData removes every landing-zone row belonging to the
// collection's tool runs, then the tool runs themselves. Tables are taken
// from the whitelist so the fan-out never touches anything else.
func (db *DB) DeleteCollectionData(collectionRunID string) error {
	rows, err := db.conn.Query(
		`SELECT run_pk FROM lz_tool_runs WHERE collection_run_id = ?`, collectionRunID)
	if err != nil {
		return err
	}
	var runPKs []any
	for rows.Next() {
		var pk int64
		if err := rows.Scan(&pk); err != nil {
			rows.Close()
			return err
		}
		runPKs = append(runPKs, pk)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(runPKs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(runPKs)), ",")
	tables := make([]string, 0, len(validLZTables))
	for t := range validLZTables {
		if t == "lz_tool_runs" {
			continue
		}
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, table := range tables {
		exists, err := db.tableExists(table)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if _, err := db.conn.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE run_pk IN (%s)", table, placeholders), runPKs...,
		); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	_, err = db.conn.Exec(
		fmt.Sprintf("DELETE FROM lz_tool_runs WHERE run_pk IN (%s)", placeholders), runPKs...)
	return err
}

// InsertToolRun records one tool execution and returns its run_pk.
func (db *DB) InsertToolRun(run lz.ToolRun) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO lz_tool_runs
		  (collection_run_id, repo_id, run_id, tool_name, tool_version, schema_version,
		   branch, "commit", timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CollectionRunID, run.RepoID, run.RunID, run.ToolName, run.ToolVersion,
		run.SchemaVersion, run.Branch, run.Commit, fmtTime(run.Timestamp),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetRunPK resolves the surrogate key of one tool's run in a collection.
func (db *DB) GetRunPK(collectionRunID, toolName string) (int64, error) {
	return db.GetRunPKAny(collectionRunID, toolName)
}

// GetRunPKAny resolves the first tool run matching any of the given names.
// Used for the layout lookup, which accepts both "layout-scanner" and
// "layout".
func (db *DB) GetRunPKAny(collectionRunID string, toolNames ...string) (int64, error) {
	if len(toolNames) == 0 {
		return 0, ErrNotFound
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(toolNames)), ",")
	args := make([]any, 0, len(toolNames)+1)
	args = append(args, collectionRunID)
	for _, n := range toolNames {
		args = append(args, n)
	}
	var pk int64
	err := db.conn.QueryRow(fmt.Sprintf(
		`SELECT run_pk FROM lz_tool_runs WHERE collection_run_id = ? AND tool_name IN (%s)`,
		placeholders), args...).Scan(&pk)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return pk, err
}

func (db *DB) ListToolRuns(collectionRunID string) ([]lz.ToolRun, error) {
	rows, err := db.conn.Query(`
		SELECT run_pk, collection_run_id, repo_id, run_id, tool_name, tool_version,
		       schema_version, branch, "commit", timestamp
		FROM lz_tool_runs WHERE collection_run_id = ? ORDER BY run_pk`, collectionRunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lz.ToolRun
	for rows.Next() {
		var tr lz.ToolRun
		var ts string
		if err := rows.Scan(&tr.RunPK, &tr.CollectionRunID, &tr.RepoID, &tr.RunID,
			&tr.ToolName, &tr.ToolVersion, &tr.SchemaVersion, &tr.Branch, &tr.Commit, &ts); err != nil {
			return nil, err
		}
		tr.Timestamp = parseTime(ts)
		out = append(out, tr)
	}
	return out, rows.Err()
}
