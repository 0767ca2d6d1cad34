package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

type diffPayload struct {
	BaseID  string        `json:"base_id"`
	HeadID  string        `json:"head_id"`
	Summary diffSummary   `json:"summary"`
	New     []lz.Finding  `json:"new"`
	Removed []lz.Finding  `json:"removed"`
	Changed []diffChanged `json:"changed"`
}

type diffSummary struct {
	NewCount     int `json:"new"`
	RemovedCount int `json:"removed"`
	ChangedCount int `json:"changed"`
}

type diffChanged struct {
	Key     string     `json:"key"`
	Base    lz.Finding `json:"base"`
	Head    lz.Finding `json:"head"`
	Changed []string   `json:"fields_changed"`
}

// Diff compares the findings of two collection runs by logical identity
// (tool|rule|path|line).
func Diff(db *storage.DB, baseID, headID string) (*diffPayload, error) {
	base, err := db.ListFindings(baseID, "")
	if err != nil {
		return nil, err
	}
	head, err := db.ListFindings(headID, "")
	if err != nil {
		return nil, err
	}

	bm := map[string]lz.Finding{}
	hm := map[string]lz.Finding{}
	for _, f := range base {
		bm[f.Key()] = f
	}
	for _, f := range head {
		hm[f.Key()] = f
	}

	payload := &diffPayload{BaseID: baseID, HeadID: headID}
	for k, hf := range hm {
		bf, ok := bm[k]
		if !ok {
			payload.New = append(payload.New, hf)
			continue
		}
		var fields []string
		if !strings.EqualFold(bf.Severity, hf.Severity) {
			fields = append(fields, "severity")
		}
		if strings.TrimSpace(bf.Message) != strings.TrimSpace(hf.Message) {
			fields = append(fields, "message")
		}
		if bf.LineEnd != hf.LineEnd {
			fields = append(fields, "line_end")
		}
		if len(fields) > 0 {
			payload.Changed = append(payload.Changed, diffChanged{
				Key: k, Base: bf, Head: hf, Changed: fields,
			})
		}
	}
	for k, bf := range bm {
		if _, ok := hm[k]; !ok {
			payload.Removed = append(payload.Removed, bf)
		}
	}

	sortFindings(payload.New)
	sortFindings(payload.Removed)
	sortChanged(payload.Changed)
	payload.Summary = diffSummary{
		NewCount:     len(payload.New),
		RemovedCount: len(payload.Removed),
		ChangedCount: len(payload.Changed),
	}
	return payload, nil
}

// WriteDiffJSON runs Diff and writes the result under outDir.
func WriteDiffJSON(db *storage.DB, baseID, headID, outDir string) (string, error) {
	payload, err := Diff(db, baseID, headID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, "diff_"+baseID+"__"+headID+".json")
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, b, 0o644)
}

func sortChanged(cs []diffChanged) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Key < cs[j].Key })
}
