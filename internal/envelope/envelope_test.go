package envelope

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleEnvelope = `{
  "metadata": {
    "repo_id": "acme-api",
    "run_id": "run-001",
    "tool_name": "lizard",
    "tool_version": "1.17.10",
    "schema_version": "1.0.0",
    "branch": "main",
    "commit": "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
    "timestamp": "2026-01-04T12:00:00Z"
  },
  "data": {"files": []}
}`

func TestParseAndValidate(t *testing.T) {
	env, err := Parse([]byte(sampleEnvelope))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env.Metadata.ToolName != "lizard" {
		t.Errorf("tool_name = %q", env.Metadata.ToolName)
	}
	if err := env.Metadata.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
	if err := env.Validate("acme-api", "run-001"); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := env.Validate("other-repo", "run-001"); err == nil {
		t.Error("Validate accepted wrong repo_id")
	}
	if err := env.Validate("acme-api", "run-999"); err == nil {
		t.Error("Validate accepted wrong run_id")
	}
}

func TestMetadataTimeZuluNormalization(t *testing.T) {
	m := Metadata{Timestamp: "2026-01-04T12:00:00Z"}
	ts, err := m.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if ts.UTC().Hour() != 12 {
		t.Errorf("hour = %d, want 12", ts.UTC().Hour())
	}

	m = Metadata{Timestamp: "2026-01-04T12:00:00+02:00"}
	if _, err := m.Time(); err != nil {
		t.Errorf("offset timestamp rejected: %v", err)
	}

	m = Metadata{}
	if _, err := m.Time(); err == nil {
		t.Error("empty timestamp accepted")
	}
}

func TestMetadataCheckCollectsAllErrors(t *testing.T) {
	m := Metadata{SchemaVersion: "not-semver"}
	err := m.Check()
	if err == nil {
		t.Fatal("Check accepted empty metadata")
	}
	for _, want := range []string{"repo_id missing", "run_id missing", "tool_name missing", "not semver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output.json")
	if err := os.WriteFile(path, []byte(sampleEnvelope), 0o644); err != nil {
		t.Fatal(err)
	}
	env, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var data struct {
		Files []any `json:"files"`
	}
	if err := env.DecodeData(&data); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Load accepted missing file")
	}
}

func TestDecodeDataEmpty(t *testing.T) {
	env := &Envelope{}
	var v any
	if err := env.DecodeData(&v); err == nil {
		t.Error("DecodeData accepted empty data")
	}
}

func TestIsFallbackCommit(t *testing.T) {
	if !IsFallbackCommit("") || !IsFallbackCommit(FallbackCommit) {
		t.Error("fallback commits not recognized")
	}
	if IsFallbackCommit("a1b2c3") {
		t.Error("real commit treated as fallback")
	}
}
