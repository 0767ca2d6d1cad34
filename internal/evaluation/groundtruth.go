package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FunctionTruth is the expected shape of one function.
type FunctionTruth struct {
	CCN       int `json:"ccn"`
	NLOC      int `json:"nloc"`
	Params    int `json:"params"`
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// FileTruth is the expected shape of one source file.
type FileTruth struct {
	ExpectedFunctions int                      `json:"expected_functions"`
	TotalCCN          int                      `json:"total_ccn"`
	Functions         map[string]FunctionTruth `json:"functions"`
}

// GroundTruth is one fixture set, either a single language file or the
// merged view across all languages.
type GroundTruth struct {
	Languages      []string             `json:"languages"`
	Files          map[string]FileTruth `json:"files"`
	TotalFunctions int                  `json:"total_functions"`
	TotalCCN       int                  `json:"total_ccn"`
}

// LoadGroundTruthDir reads every *.json fixture in dir, keyed by the file
// stem (the language name).
func LoadGroundTruthDir(dir string) (map[string]*GroundTruth, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob ground truth: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no ground truth fixtures in %s", dir)
	}
	sort.Strings(matches)

	out := make(map[string]*GroundTruth, len(matches))
	for _, path := range matches {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read ground truth %s: %w", path, err)
		}
		var gt GroundTruth
		if err := json.Unmarshal(b, &gt); err != nil {
			return nil, fmt.Errorf("parse ground truth %s: %w", path, err)
		}
		lang := strings.TrimSuffix(filepath.Base(path), ".json")
		out[lang] = &gt
	}
	return out, nil
}

// MergeGroundTruth folds per-language fixtures into one set, prefixing file
// names with the language so they stay unique.
func MergeGroundTruth(byLang map[string]*GroundTruth) *GroundTruth {
	merged := &GroundTruth{Files: map[string]FileTruth{}}
	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	merged.Languages = langs

	for _, lang := range langs {
		gt := byLang[lang]
		for filename, ft := range gt.Files {
			merged.Files[lang+"/"+filename] = ft
			merged.TotalFunctions += ft.ExpectedFunctions
			merged.TotalCCN += ft.TotalCCN
		}
	}
	return merged
}

// functionsByCCNRange lists (file, function, truth) triples whose expected
// CCN falls in [lo, hi], in a stable order.
func (gt *GroundTruth) functionsByCCNRange(lo, hi int) []truthRef {
	var out []truthRef
	for filename, ft := range gt.Files {
		for name, fn := range ft.Functions {
			if fn.CCN >= lo && fn.CCN <= hi {
				out = append(out, truthRef{File: filename, Function: name, Truth: fn})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Function < out[j].Function
	})
	return out
}

type truthRef struct {
	File     string
	Function string
	Truth    FunctionTruth
}
