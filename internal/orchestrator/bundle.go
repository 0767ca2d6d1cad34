package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
)

// Manifest describes a Caldera bundle: one collection's tool outputs plus
// the identity they were produced under.
type Manifest struct {
	RepoID  string            `json:"repo_id"`
	RunID   string            `json:"run_id"`
	Branch  string            `json:"branch"`
	Commit  string            `json:"commit"`
	Outputs map[string]string `json:"outputs"` // tool name -> path relative to the bundle dir
}

// Bundle is a loaded manifest anchored at its directory.
type Bundle struct {
	Dir      string
	Manifest Manifest
}

// LoadBundle reads manifest.json from dir and applies the defaults the
// orchestrator has always used: branch main, all-zeros commit for non-git
// repos.
func LoadBundle(dir string) (*Bundle, error) {
	b, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read bundle manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse bundle manifest: %w", err)
	}
	if m.RepoID == "" {
		return nil, fmt.Errorf("bundle manifest missing repo_id")
	}
	if m.RunID == "" {
		return nil, fmt.Errorf("bundle manifest missing run_id")
	}
	if m.Branch == "" {
		m.Branch = "main"
	}
	if m.Commit == "" {
		m.Commit = envelope.FallbackCommit
	}
	return &Bundle{Dir: dir, Manifest: m}, nil
}

// OutputPath resolves the output file for a tool. Tools absent from the
// manifest fall back to the <tool>/output.json convention; the second return
// reports whether the file exists.
func (b *Bundle) OutputPath(tool string) (string, bool) {
	rel, ok := b.Manifest.Outputs[tool]
	if !ok {
		rel = filepath.Join(tool, "output.json")
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.Dir, rel)
	}
	if _, err := os.Stat(path); err != nil {
		return path, false
	}
	return path, true
}

// Tools returns the tool names the manifest explicitly lists, sorted.
func (b *Bundle) Tools() []string {
	out := make([]string, 0, len(b.Manifest.Outputs))
	for tool := range b.Manifest.Outputs {
		out = append(out, tool)
	}
	sort.Strings(out)
	return out
}
