package adapters

import (
	"fmt"
	"log/slog"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

// Registry holds the adapter for every supported tool.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds the full adapter set over one landing zone.
func NewRegistry(db *storage.DB, repoRoot string, log *slog.Logger) *Registry {
	base := Base{DB: db, RepoRoot: repoRoot, Log: log}
	r := &Registry{adapters: map[string]Adapter{}}
	for _, a := range []Adapter{
		&Layout{base},
		&Scc{base},
		&Lizard{base},
		&Semgrep{base},
		&Gitleaks{base},
		&Trivy{base},
		&Roslyn{base},
		&Sonarqube{base},
		&GitSizer{base},
		&GitFame{base},
	} {
		r.adapters[a.Tool()] = a
	}
	// The layout scanner has shipped under both names.
	r.adapters["layout-scanner"] = r.adapters["layout"]
	return r
}

// Lookup returns the adapter for a tool name.
func (r *Registry) Lookup(tool string) (Adapter, error) {
	a, ok := r.adapters[tool]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for tool %q", tool)
	}
	return a, nil
}

// Relaxed reports whether the tool's adapter tolerates incomplete envelope
// metadata.
func (r *Registry) Relaxed(tool string) bool {
	a, ok := r.adapters[tool]
	if !ok {
		return false
	}
	relaxed, ok := a.(interface{ RelaxedMetadata() bool })
	return ok && relaxed.RelaxedMetadata()
}
