package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func testCollection(id string) lz.CollectionRun {
	return lz.CollectionRun{
		CollectionRunID: id,
		RepoID:          "acme-api",
		RunID:           "run-" + id,
		Branch:          "main",
		Commit:          "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
		StartedAt:       time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC),
		Status:          "running",
	}
}

func TestCollectionRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	run := testCollection("c1")
	if err := db.InsertCollectionRun(run); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := db.GetCollectionRun("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RepoID != "acme-api" || got.Status != "running" {
		t.Errorf("got %+v", got)
	}

	byCommit, err := db.GetCollectionRunByRepoCommit(run.RepoID, run.Commit)
	if err != nil || byCommit.CollectionRunID != "c1" {
		t.Errorf("by repo+commit: %+v err %v", byCommit, err)
	}

	done := time.Date(2026, 1, 4, 12, 30, 0, 0, time.UTC)
	if err := db.MarkCollectionStatus("c1", "completed", &done); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, _ = db.GetCollectionRun("c1")
	if got.Status != "completed" || got.CompletedAt == nil {
		t.Errorf("after mark: %+v", got)
	}

	if _, err := db.GetCollectionRun("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing run error = %v, want ErrNotFound", err)
	}
}

func TestToolRunAndRunPK(t *testing.T) {
	db := openTestDB(t)
	run := testCollection("c1")
	if err := db.InsertCollectionRun(run); err != nil {
		t.Fatal(err)
	}

	pk, err := db.InsertToolRun(lz.ToolRun{
		CollectionRunID: "c1", RepoID: run.RepoID, RunID: run.RunID,
		ToolName: "layout-scanner", ToolVersion: "1.0.0", SchemaVersion: "1.0.0",
		Branch: "main", Commit: run.Commit, Timestamp: run.StartedAt,
	})
	if err != nil {
		t.Fatalf("insert tool run: %v", err)
	}
	if pk <= 0 {
		t.Fatalf("run_pk = %d", pk)
	}

	got, err := db.GetRunPK("c1", "layout-scanner")
	if err != nil || got != pk {
		t.Errorf("GetRunPK = %d, %v", got, err)
	}
	any, err := db.GetRunPKAny("c1", "layout-scanner", "layout")
	if err != nil || any != pk {
		t.Errorf("GetRunPKAny = %d, %v", any, err)
	}
	if _, err := db.GetRunPK("c1", "scc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing tool error = %v", err)
	}

	runs, err := db.ListToolRuns("c1")
	if err != nil || len(runs) != 1 {
		t.Fatalf("list tool runs: %v, %d", err, len(runs))
	}
	if runs[0].ToolName != "layout-scanner" {
		t.Errorf("tool = %q", runs[0].ToolName)
	}
}

func TestDeleteCollectionDataFanOut(t *testing.T) {
	db := openTestDB(t)
	run := testCollection("c1")
	if err := db.InsertCollectionRun(run); err != nil {
		t.Fatal(err)
	}
	pk, err := db.InsertToolRun(lz.ToolRun{
		CollectionRunID: "c1", RepoID: run.RepoID, RunID: run.RunID,
		ToolName: "layout-scanner", Timestamp: run.StartedAt,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.EnsureLZTables(map[string]string{
		"lz_layout_files": `CREATE TABLE IF NOT EXISTS lz_layout_files (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			directory_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			extension TEXT,
			language TEXT,
			category TEXT,
			size_bytes BIGINT NOT NULL,
			line_count INTEGER NOT NULL,
			is_binary BOOLEAN NOT NULL,
			PRIMARY KEY (run_pk, file_id)
		)`,
	}); err != nil {
		t.Fatalf("ensure lz tables: %v", err)
	}
	if err := db.InsertLayoutFiles([]lz.LayoutFile{{
		RunPK: pk, FileID: "f1", RelativePath: "src/a.go", DirectoryID: "d1",
		Filename: "a.go", SizeBytes: 10, LineCount: 2,
	}}); err != nil {
		t.Fatalf("insert layout files: %v", err)
	}

	if err := db.DeleteCollectionData("c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := db.CountLayoutFiles(pk)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("layout rows after delete = %d", n)
	}
	if _, err := db.GetRunPK("c1", "layout-scanner"); !errors.Is(err, ErrNotFound) {
		t.Errorf("tool run survived delete: %v", err)
	}
	// The collection run row itself stays; replace reuses it.
	if _, err := db.GetCollectionRun("c1"); err != nil {
		t.Errorf("collection run deleted: %v", err)
	}
}

func TestValidateTableName(t *testing.T) {
	if err := ValidateTableName("lz_layout_files"); err != nil {
		t.Errorf("whitelisted table rejected: %v", err)
	}
	for _, bad := range []string{"users", "lz_evil; DROP TABLE users", "lz_unknown_table"} {
		if err := ValidateTableName(bad); err == nil {
			t.Errorf("table %q accepted", bad)
		}
	}
}

func TestUsersAndSessions(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreateUser("alice", "$2a$10$fakehashfakehashfakehash", "admin")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	u, hash, err := db.GetUserByUsername("alice")
	if err != nil || u.ID != id || hash == "" {
		t.Fatalf("get user: %+v, %q, %v", u, hash, err)
	}
	if u.Role != "admin" {
		t.Errorf("role = %q", u.Role)
	}
	if _, _, err := db.GetUserByUsername("bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user error = %v", err)
	}

	exp := time.Now().Add(time.Hour)
	if err := db.CreateSession(id, "tok-1", exp); err != nil {
		t.Fatalf("create session: %v", err)
	}
	su, err := db.GetSession("tok-1")
	if err != nil || su.Username != "alice" {
		t.Fatalf("get session: %+v, %v", su, err)
	}
	if err := db.DeleteSession("tok-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := db.GetSession("tok-1"); err == nil {
		t.Error("session survived delete")
	}

	if err := db.LogAudit("alice", "login", "", map[string]any{"ip": "127.0.0.1"}); err != nil {
		t.Errorf("audit: %v", err)
	}
}

func TestSelectMapsReadOnly(t *testing.T) {
	db := openTestDB(t)

	rows, err := db.SelectMaps("SELECT 1 AS one, 'x' AS name")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "x" {
		t.Errorf("rows = %+v", rows)
	}

	if _, err := db.SelectMaps("DELETE FROM lz_collection_runs"); err == nil {
		t.Error("mutation accepted by SelectMaps")
	}
}
