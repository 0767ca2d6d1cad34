package evaluation

import (
	"fmt"
	"strings"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
)

// AnalysisFunction is one function as reported by the analyzer.
type AnalysisFunction struct {
	Name           string `json:"name"`
	LongName       string `json:"long_name"`
	CCN            int    `json:"ccn"`
	NLOC           int    `json:"nloc"`
	ParameterCount int    `json:"parameter_count"`
	StartLine      int    `json:"start_line"`
	EndLine        int    `json:"end_line"`
}

// AnalysisFile is one analyzed source file.
type AnalysisFile struct {
	Path      string             `json:"path"`
	Language  string             `json:"language"`
	NLOC      int                `json:"nloc"`
	Functions []AnalysisFunction `json:"functions"`
}

// AnalysisSummary carries run-level figures used by performance checks.
type AnalysisSummary struct {
	TotalFiles     int   `json:"total_files"`
	TotalFunctions int   `json:"total_functions"`
	DurationMS     int64 `json:"duration_ms"`
}

// Analysis is the snapshot checks run against.
type Analysis struct {
	Files   []AnalysisFile  `json:"files"`
	Summary AnalysisSummary `json:"summary"`
}

// LoadAnalysis reads an analyzer output envelope and decodes its payload.
func LoadAnalysis(path string) (*Analysis, error) {
	env, err := envelope.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	var a Analysis
	if err := env.DecodeData(&a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}

// findFunction locates a function in the analysis by ground-truth filename
// and function name. Filenames match by suffix since ground truth records
// names relative to the fixture root. When several files share a suffix and
// an expected CCN is given, the closest CCN wins.
func (a *Analysis) findFunction(filename, funcName string, expectedCCN int) (*AnalysisFunction, bool) {
	base := filename
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		base = filename[i+1:]
	}

	var best *AnalysisFunction
	bestDiff := -1
	for fi := range a.Files {
		path := a.Files[fi].Path
		if !strings.HasSuffix(path, filename) && !strings.HasSuffix(path, base) {
			continue
		}
		for gi := range a.Files[fi].Functions {
			fn := &a.Files[fi].Functions[gi]
			if fn.Name != funcName && !strings.HasSuffix(fn.Name, "."+funcName) {
				continue
			}
			if expectedCCN <= 0 {
				return fn, true
			}
			diff := fn.CCN - expectedCCN
			if diff < 0 {
				diff = -diff
			}
			if bestDiff < 0 || diff < bestDiff {
				best, bestDiff = fn, diff
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// fileByName finds an analyzed file whose path ends with the ground-truth
// filename.
func (a *Analysis) fileByName(filename string) (*AnalysisFile, bool) {
	base := filename
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		base = filename[i+1:]
	}
	for fi := range a.Files {
		path := a.Files[fi].Path
		if strings.HasSuffix(path, filename) || strings.HasSuffix(path, base) {
			return &a.Files[fi], true
		}
	}
	return nil, false
}
