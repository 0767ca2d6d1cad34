package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/adapters"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

func writeEnvelope(t *testing.T, path, tool string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	doc := map[string]any{
		"metadata": map[string]any{
			"repo_id":        "acme-api",
			"run_id":         "run-001",
			"tool_name":      tool,
			"tool_version":   "1.0.0",
			"schema_version": "1.0.0",
			"branch":         "main",
			"commit":         "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
			"timestamp":      "2026-01-04T12:00:00Z",
		},
		"data": json.RawMessage(raw),
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func testBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	manifest := map[string]any{
		"repo_id": "acme-api",
		"run_id":  "run-001",
		"branch":  "main",
		"commit":  "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
		"outputs": map[string]string{
			"layout-scanner": "layout-scanner/output.json",
			"lizard":         "lizard/output.json",
		},
	}
	b, _ := json.MarshalIndent(manifest, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), b, 0o644); err != nil {
		t.Fatal(err)
	}

	writeEnvelope(t, filepath.Join(dir, "layout-scanner", "output.json"), "layout-scanner", map[string]any{
		"files": map[string]any{
			"src/main.go": map[string]any{
				"id": "f1", "path": "src/main.go", "name": "main.go",
				"extension": ".go", "language": "Go", "classification": "source",
				"size_bytes": 120, "line_count": 10, "parent_directory_id": "d1",
			},
		},
		"directories": map[string]any{
			"src": map[string]any{
				"id": "d1", "path": "src", "depth": 1,
				"recursive_file_count": 1, "recursive_size_bytes": 120,
			},
		},
	})
	writeEnvelope(t, filepath.Join(dir, "lizard", "output.json"), "lizard", map[string]any{
		"files": []any{
			map[string]any{
				"path": "src/main.go", "language": "Go", "nloc": 10,
				"function_count": 1, "total_ccn": 1, "avg_ccn": 1.0, "max_ccn": 1,
				"functions": []any{
					map[string]any{
						"name": "main", "long_name": "main()", "ccn": 1,
						"nloc": 5, "params": 0, "line_start": 3, "line_end": 8,
					},
				},
			},
		},
	})
	return dir
}

func newOrchestrator(t *testing.T) (*Orchestrator, *storage.DB) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &Orchestrator{
		DB:       db,
		Registry: adapters.NewRegistry(db, "", nil),
	}, db
}

func TestRunIngestsBundle(t *testing.T) {
	orch, db := newOrchestrator(t)
	bundle := testBundle(t)

	opts := Options{
		RepoID:    "acme-api",
		RunID:     "run-001",
		Branch:    "main",
		Commit:    "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
		BundleDir: bundle,
	}
	if err := orch.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	run, err := db.GetCollectionRun("run-001")
	if err != nil {
		t.Fatalf("collection run: %v", err)
	}
	if run.Status != "completed" || run.CompletedAt == nil {
		t.Errorf("run = %+v", run)
	}

	tools, err := db.ListToolRuns("run-001")
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 2 {
		t.Fatalf("tool runs = %d, want 2 (layout + lizard)", len(tools))
	}
}

func TestRunRefusesDuplicateWithoutReplace(t *testing.T) {
	orch, _ := newOrchestrator(t)
	bundle := testBundle(t)

	opts := Options{
		RepoID:    "acme-api",
		RunID:     "run-001",
		Commit:    "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
		BundleDir: bundle,
	}
	if err := orch.Run(context.Background(), opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := orch.Run(context.Background(), opts); !errors.Is(err, ErrCollectionExists) {
		t.Errorf("second run err = %v, want ErrCollectionExists", err)
	}

	opts.Replace = true
	if err := orch.Run(context.Background(), opts); err != nil {
		t.Errorf("replace run: %v", err)
	}
}

func TestRunAssignsRunID(t *testing.T) {
	orch, db := newOrchestrator(t)

	opts := Options{
		RepoID:    "other-repo",
		Commit:    "ffffffffffffffffffffffffffffffffffffffff",
		BundleDir: t.TempDir(), // empty bundle: layout missing, run fails
	}
	err := orch.Run(context.Background(), opts)
	if err == nil {
		t.Fatal("empty bundle accepted")
	}
	runs, err := db.ListCollectionRuns(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].RunID == "" {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Status != "failed" {
		t.Errorf("status = %q, want failed", runs[0].Status)
	}
}

func TestLoadBundle(t *testing.T) {
	dir := testBundle(t)
	b, err := LoadBundle(dir)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if b.Manifest.RepoID != "acme-api" || b.Manifest.RunID != "run-001" {
		t.Errorf("manifest = %+v", b.Manifest)
	}
	path, ok := b.OutputPath("lizard")
	if !ok {
		t.Fatal("lizard output missing")
	}
	if filepath.Base(filepath.Dir(path)) != "lizard" {
		t.Errorf("path = %q", path)
	}
	if _, ok := b.OutputPath("trivy"); ok {
		t.Error("trivy output reported present")
	}
	tools := b.Tools()
	if len(tools) != 2 || tools[0] != "layout-scanner" || tools[1] != "lizard" {
		t.Errorf("Tools() = %v, want sorted [layout-scanner lizard]", tools)
	}

	if _, err := LoadBundle(t.TempDir()); err == nil {
		t.Error("bundle without manifest accepted")
	}
}

func TestRunWritesPerRunLog(t *testing.T) {
	orch, _ := newOrchestrator(t)
	bundle := testBundle(t)
	logDir := t.TempDir()

	opts := Options{
		RepoID:    "acme-api",
		RunID:     "run-001",
		Commit:    "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
		BundleDir: bundle,
		LogDir:    logDir,
	}
	if err := orch.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(logDir, "caldera_orchestrator_run-001.log"))
	if err != nil {
		t.Fatalf("per-run log: %v", err)
	}
	if !strings.Contains(string(b), "collection_run_id") {
		t.Errorf("log lacks collection attributes:\n%s", b)
	}
	if orch.Log != nil {
		t.Error("logger not restored after run")
	}
}
