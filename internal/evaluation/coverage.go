package evaluation

import "fmt"

func init() {
	Register(Check{
		ID: "CV-1", Name: "Ground truth files analyzed",
		Category: CategoryCoverage, Severity: SeverityCritical,
		Eval: checkFilesCovered,
	})
	Register(Check{
		ID: "CV-2", Name: "Functions detected in non-empty files",
		Category: CategoryCoverage, Severity: SeverityHigh,
		Eval: checkFunctionsCovered,
	})
	Register(Check{
		ID: "CV-3", Name: "Language coverage",
		Category: CategoryCoverage, Severity: SeverityMedium,
		Eval: checkLanguagesCovered,
	})
}

// checkFilesCovered verifies every ground-truth file appears in the
// analysis. Files expected to have zero functions may be skipped by the
// analyzer, so they count as covered either way.
func checkFilesCovered(a *Analysis, gt *GroundTruth) CheckResult {
	covered := 0
	var missing []map[string]any

	for filename, ft := range gt.Files {
		if _, ok := a.fileByName(filename); ok || ft.ExpectedFunctions == 0 {
			covered++
		} else {
			missing = append(missing, map[string]any{
				"file": filename, "expected_functions": ft.ExpectedFunctions,
			})
		}
	}

	total := len(gt.Files)
	score := 1.0
	if total > 0 {
		score = float64(covered) / float64(total)
	}
	return partialResult("CV-1", "Ground truth files analyzed", CategoryCoverage, SeverityCritical,
		score,
		fmt.Sprintf("%d/%d ground truth files present in analysis", covered, total),
		map[string]any{"covered": covered, "total": total, "missing_files": capEvidence(missing)})
}

// checkFunctionsCovered verifies files expected to contain functions report
// at least one.
func checkFunctionsCovered(a *Analysis, gt *GroundTruth) CheckResult {
	covered := 0
	total := 0
	var empty []map[string]any

	for filename, ft := range gt.Files {
		if ft.ExpectedFunctions == 0 {
			continue
		}
		total++
		af, ok := a.fileByName(filename)
		if ok && len(af.Functions) > 0 {
			covered++
		} else {
			empty = append(empty, map[string]any{
				"file": filename, "expected_functions": ft.ExpectedFunctions,
			})
		}
	}

	score := 1.0
	if total > 0 {
		score = float64(covered) / float64(total)
	}
	return partialResult("CV-2", "Functions detected in non-empty files", CategoryCoverage, SeverityHigh,
		score,
		fmt.Sprintf("%d/%d non-empty files report at least one function", covered, total),
		map[string]any{"covered": covered, "total": total, "files_without_functions": capEvidence(empty)})
}

// checkLanguagesCovered verifies the analysis touches every fixture
// language. Language is inferred from the lang/ prefix the merge step adds.
func checkLanguagesCovered(a *Analysis, gt *GroundTruth) CheckResult {
	if len(gt.Languages) == 0 {
		return result("CV-3", "Language coverage", CategoryCoverage, SeverityMedium,
			true, "single-language ground truth, nothing to cover", nil)
	}

	covered := 0
	var missing []map[string]any
	for _, lang := range gt.Languages {
		found := false
		for filename := range gt.Files {
			if len(filename) > len(lang) && filename[:len(lang)+1] == lang+"/" {
				if _, ok := a.fileByName(filename); ok {
					found = true
					break
				}
			}
		}
		if found {
			covered++
		} else {
			missing = append(missing, map[string]any{"language": lang})
		}
	}

	total := len(gt.Languages)
	return partialResult("CV-3", "Language coverage", CategoryCoverage, SeverityMedium,
		float64(covered)/float64(total),
		fmt.Sprintf("%d/%d fixture languages present in analysis", covered, total),
		map[string]any{"covered": covered, "total": total, "missing_languages": capEvidence(missing)})
}
