// Package reporting writes collection reports and collection diffs as JSON.
package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/insights"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

type reportPayload struct {
	Summary  *insights.Summary `json:"summary"`
	Findings []lz.Finding      `json:"findings"`
}

// WriteJSON writes the full report for one collection run and returns the
// output path. Findings come back ordered severity-desc then by identity,
// so repeated runs produce identical files.
func WriteJSON(db *storage.DB, collectionRunID, outDir string) (string, error) {
	summary, err := insights.BuildSummary(db, collectionRunID)
	if err != nil {
		return "", err
	}
	findings, err := db.ListFindings(collectionRunID, "")
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, collectionRunID+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reportPayload{Summary: summary, Findings: findings}); err != nil {
		return "", err
	}
	return path, nil
}

// sortFindings orders findings severity-desc, then by key.
func sortFindings(fs []lz.Finding) {
	sort.Slice(fs, func(i, j int) bool {
		ri, rj := lz.SeverityRank(fs[i].Severity), lz.SeverityRank(fs[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return fs[i].Key() < fs[j].Key()
	})
}
