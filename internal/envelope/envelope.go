// Package envelope implements the common Caldera tool-output envelope:
// a JSON document {"metadata": {...}, "data": {...}} produced by every
// analysis tool and consumed by the ingestion adapters.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

const FallbackCommit = "0000000000000000000000000000000000000000"

var semver = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Metadata identifies the tool execution that produced a payload.
type Metadata struct {
	RepoID        string `json:"repo_id"`
	RunID         string `json:"run_id"`
	ToolName      string `json:"tool_name"`
	ToolVersion   string `json:"tool_version"`
	SchemaVersion string `json:"schema_version"`
	Branch        string `json:"branch"`
	Commit        string `json:"commit"`
	Timestamp     string `json:"timestamp"` // RFC3339, trailing Z accepted
}

// Time parses the metadata timestamp. A trailing Z is normalized the same
// way the ingestion layer always has.
func (m Metadata) Time() (time.Time, error) {
	ts := m.Timestamp
	if ts == "" {
		return time.Time{}, errors.New("metadata timestamp missing")
	}
	if strings.HasSuffix(ts, "Z") {
		ts = ts[:len(ts)-1] + "+00:00"
	}
	return time.Parse(time.RFC3339, ts)
}

// Check validates that the required metadata fields are present and sane.
func (m Metadata) Check() error {
	var errs []string
	if m.RepoID == "" {
		errs = append(errs, "repo_id missing")
	}
	if m.RunID == "" {
		errs = append(errs, "run_id missing")
	}
	if m.ToolName == "" {
		errs = append(errs, "tool_name missing")
	}
	if m.SchemaVersion != "" && !semver.MatchString(m.SchemaVersion) {
		errs = append(errs, fmt.Sprintf("schema_version %q is not semver", m.SchemaVersion))
	}
	if _, err := m.Time(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid metadata: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Envelope is the parsed wrapper; Data stays raw so each adapter can decode
// its own tool-specific shape.
type Envelope struct {
	Metadata Metadata        `json:"metadata"`
	Data     json.RawMessage `json:"data"`
}

func Parse(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return &env, nil
}

func Load(path string) (*Envelope, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return Parse(b)
}

// Validate ensures the payload belongs to the collection the orchestrator is
// ingesting. A mismatch means a stale or foreign output file and is fatal.
func (e *Envelope) Validate(repoID, runID string) error {
	if e.Metadata.RepoID != repoID {
		return fmt.Errorf("repo_id mismatch: orchestrator %q, payload %q", repoID, e.Metadata.RepoID)
	}
	if e.Metadata.RunID != runID {
		return fmt.Errorf("run_id mismatch: orchestrator %q, payload %q", runID, e.Metadata.RunID)
	}
	return nil
}

// DecodeData unmarshals the data section into v.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return errors.New("envelope has no data section")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Metadata.ToolName, err)
	}
	return nil
}

// IsFallbackCommit reports whether commit is the all-zeros placeholder the
// orchestrator uses for non-git repos.
func IsFallbackCommit(commit string) bool {
	return commit == "" || commit == FallbackCommit
}
