package insights

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/adapters"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

func toolEnv(t *testing.T, tool string, data any) *envelope.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return &envelope.Envelope{
		Metadata: envelope.Metadata{
			RepoID:        "acme-api",
			RunID:         "c1",
			ToolName:      tool,
			ToolVersion:   "1.0.0",
			SchemaVersion: "1.0.0",
			Branch:        "main",
			Commit:        "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
			Timestamp:     "2026-01-04T12:00:00Z",
		},
		Data: raw,
	}
}

// seededDB builds a landing zone with a layout run, semgrep findings, and
// scc metrics for one collection.
func seededDB(t *testing.T) (*storage.DB, lz.CollectionRun) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(); err != nil {
		t.Fatal(err)
	}

	collection := lz.CollectionRun{
		CollectionRunID: "c1",
		RepoID:          "acme-api",
		RunID:           "c1",
		Branch:          "main",
		Commit:          "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
		StartedAt:       time.Now().UTC(),
		Status:          "running",
	}
	if err := db.InsertCollectionRun(collection); err != nil {
		t.Fatal(err)
	}

	reg := adapters.NewRegistry(db, "", nil)
	ingest := func(tool string, data any) {
		t.Helper()
		a, err := reg.Lookup(tool)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := a.Ingest(toolEnv(t, tool, data), collection); err != nil {
			t.Fatalf("ingest %s: %v", tool, err)
		}
	}

	ingest("layout-scanner", map[string]any{
		"files": map[string]any{
			"src/main.go": map[string]any{
				"id": "f1", "path": "src/main.go", "name": "main.go",
				"extension": ".go", "language": "Go", "classification": "source",
				"size_bytes": 2048, "line_count": 120, "parent_directory_id": "d1",
			},
			"src/util.go": map[string]any{
				"id": "f2", "path": "src/util.go", "name": "util.go",
				"extension": ".go", "language": "Go", "classification": "source",
				"size_bytes": 512, "line_count": 30, "parent_directory_id": "d1",
			},
		},
		"directories": map[string]any{
			"src": map[string]any{
				"id": "d1", "path": "src", "depth": 1,
				"recursive_file_count": 2, "recursive_size_bytes": 2560,
			},
		},
	})
	ingest("semgrep", map[string]any{
		"files": []any{
			map[string]any{
				"path": "src/main.go",
				"smells": []any{
					map[string]any{
						"rule_id": "go.lang.security.audit.sqli", "severity": "HIGH",
						"line_start": 10, "line_end": 12, "column_start": 1, "column_end": 20,
						"message": "possible sql injection",
					},
					map[string]any{
						"rule_id": "go.lang.correctness.unchecked-error", "severity": "LOW",
						"line_start": 40, "line_end": 40, "column_start": 1, "column_end": 10,
						"message": "error return ignored",
					},
				},
			},
		},
	})
	ingest("scc", map[string]any{
		"files": []any{
			map[string]any{
				"path": "src/main.go", "filename": "main.go", "language": "Go",
				"lines": 120, "code": 100, "comment": 10, "blank": 10,
				"bytes": 2048, "complexity": 8,
			},
			map[string]any{
				"path": "src/util.go", "filename": "util.go", "language": "Go",
				"lines": 30, "code": 20, "comment": 5, "blank": 5,
				"bytes": 512, "complexity": 2,
			},
		},
	})
	return db, collection
}

func TestRenderTemplate(t *testing.T) {
	sql, err := renderTemplate(
		"SELECT * FROM t WHERE run_pk = {{ run_pk }} AND sev >= {{ min_sev | default('LOW') }}",
		map[string]any{"run_pk": int64(7)})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(sql, "run_pk = 7") || !strings.Contains(sql, "sev >= LOW") {
		t.Errorf("rendered = %q", sql)
	}

	sql, err = renderTemplate("LIMIT {{ n | default(50) }}", map[string]any{"n": 10})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if sql != "LIMIT 10" {
		t.Errorf("param should win over default: %q", sql)
	}

	_, err = renderTemplate("WHERE a = {{ a }} AND b = {{ b }}", map[string]any{"a": 1})
	if err == nil || !strings.Contains(err.Error(), "missing required parameters: b") {
		t.Errorf("err = %v", err)
	}
}

func TestFetchNamedQuery(t *testing.T) {
	db, collection := seededDB(t)
	queriesDir := t.TempDir()
	query := `SELECT severity, COUNT(*) AS n
FROM lz_semgrep_smells
WHERE run_pk = {{ run_pk }}
GROUP BY severity
ORDER BY severity`
	if err := os.WriteFile(filepath.Join(queriesDir, "smells_by_severity.sql"), []byte(query), 0o644); err != nil {
		t.Fatal(err)
	}

	pk, err := db.GetRunPK(collection.CollectionRunID, "semgrep")
	if err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(db, queriesDir)
	rows, err := f.Fetch("smells_by_severity", pk, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["severity"] != "HIGH" || rows[1]["severity"] != "LOW" {
		t.Errorf("rows = %v", rows)
	}

	names, err := f.ListQueries()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "smells_by_severity" {
		t.Errorf("names = %v", names)
	}

	if _, err := f.Fetch("../outside", pk, nil); err == nil {
		t.Error("path traversal in query name accepted")
	}
	if _, err := f.Fetch("nope", pk, nil); err == nil {
		t.Error("unknown query accepted")
	}
}

func TestFetchRaw(t *testing.T) {
	db, collection := seededDB(t)
	pk, err := db.GetRunPKAny(collection.CollectionRunID, "layout-scanner", "layout")
	if err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(db, t.TempDir())
	rows, err := f.FetchRaw(
		"SELECT COUNT(*) AS n FROM lz_layout_files WHERE run_pk = {{ run_pk }} AND line_count >= {{ min_lines | default(0) }}",
		map[string]any{"run_pk": pk})
	if err != nil {
		t.Fatalf("FetchRaw: %v", err)
	}
	if len(rows) != 1 || toInt(rows[0]["n"]) != 2 {
		t.Errorf("rows = %v", rows)
	}

	if _, err := f.FetchRaw("DELETE FROM lz_layout_files", nil); err == nil {
		t.Error("non-select statement accepted")
	}
}

func TestBuildSummary(t *testing.T) {
	db, collection := seededDB(t)

	s, err := BuildSummary(db, collection.CollectionRunID)
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}
	if s.CollectionRun.CollectionRunID != "c1" {
		t.Errorf("collection = %+v", s.CollectionRun)
	}
	if s.ToolCount != 3 {
		t.Errorf("tool count = %d, want 3", s.ToolCount)
	}
	if s.FileCount != 2 {
		t.Errorf("file count = %d, want 2", s.FileCount)
	}
	if s.TotalCodeLines != 120 {
		t.Errorf("code lines = %d, want 120", s.TotalCodeLines)
	}
	if s.TotalFindings != 2 || s.BySeverity["HIGH"] != 1 || s.BySeverity["LOW"] != 1 {
		t.Errorf("findings = %d by severity %v", s.TotalFindings, s.BySeverity)
	}

	if _, err := BuildSummary(db, "missing"); err == nil {
		t.Error("unknown collection accepted")
	}
}
