package evaluation

import (
	"fmt"
	"strings"
)

func init() {
	Register(Check{
		ID: "RL-1", Name: "Empty files handled",
		Category: CategoryReliability, Severity: SeverityMedium,
		Eval: func(a *Analysis, gt *GroundTruth) CheckResult {
			return checkZeroFunctionFiles(a, gt, "RL-1", "Empty files handled", "empty")
		},
	})
	Register(Check{
		ID: "RL-2", Name: "Comments-only files handled",
		Category: CategoryReliability, Severity: SeverityMedium,
		Eval: func(a *Analysis, gt *GroundTruth) CheckResult {
			return checkZeroFunctionFiles(a, gt, "RL-2", "Comments-only files handled", "comment")
		},
	})
	Register(Check{
		ID: "RL-3", Name: "Unicode function names preserved",
		Category: CategoryReliability, Severity: SeverityLow,
		Eval: checkUnicodeNames,
	})
	Register(Check{
		ID: "RL-4", Name: "Deep nesting detected",
		Category: CategoryReliability, Severity: SeverityMedium,
		Eval: checkDeepNesting,
	})
	Register(Check{
		ID: "RL-5", Name: "Qualified and anonymous functions handled",
		Category: CategoryReliability, Severity: SeverityLow,
		Eval: checkQualifiedNames,
	})
}

// checkZeroFunctionFiles verifies files expected to be function-free report
// zero functions. A file absent from the analysis counts as correct since
// the analyzer may skip it entirely.
func checkZeroFunctionFiles(a *Analysis, gt *GroundTruth, id, name, pattern string) CheckResult {
	var candidates []string
	for filename, ft := range gt.Files {
		if ft.ExpectedFunctions == 0 && strings.Contains(strings.ToLower(filename), pattern) {
			candidates = append(candidates, filename)
		}
	}
	if len(candidates) == 0 {
		return result(id, name, CategoryReliability, SeverityMedium,
			true, fmt.Sprintf("no %q files in ground truth to validate", pattern),
			map[string]any{"file_count": 0})
	}

	correct := 0
	var incorrect []map[string]any
	for _, filename := range candidates {
		af, ok := a.fileByName(filename)
		if !ok || len(af.Functions) == 0 {
			correct++
			continue
		}
		incorrect = append(incorrect, map[string]any{
			"file": filename, "expected_functions": 0, "actual_functions": len(af.Functions),
		})
	}

	total := len(candidates)
	return partialResult(id, name, CategoryReliability, SeverityMedium,
		float64(correct)/float64(total),
		fmt.Sprintf("%d/%d files correctly report 0 functions", correct, total),
		map[string]any{"correct": correct, "total": total, "incorrect_files": capEvidence(incorrect)})
}

// checkUnicodeNames verifies non-ASCII function names from ground truth
// survive analysis intact.
func checkUnicodeNames(a *Analysis, gt *GroundTruth) CheckResult {
	var unicodeFuncs []truthRef
	for filename, ft := range gt.Files {
		for name, truth := range ft.Functions {
			if hasNonASCII(name) {
				unicodeFuncs = append(unicodeFuncs, truthRef{File: filename, Function: name, Truth: truth})
			}
		}
	}
	if len(unicodeFuncs) == 0 {
		return result("RL-3", "Unicode function names preserved", CategoryReliability, SeverityLow,
			true, "no unicode function names in ground truth to validate",
			map[string]any{"unicode_function_count": 0})
	}

	found := 0
	var missing []map[string]any
	for _, ref := range unicodeFuncs {
		if _, ok := a.findFunction(ref.File, ref.Function, ref.Truth.CCN); ok {
			found++
		} else {
			missing = append(missing, map[string]any{"file": ref.File, "function": ref.Function})
		}
	}

	total := len(unicodeFuncs)
	return partialResult("RL-3", "Unicode function names preserved", CategoryReliability, SeverityLow,
		float64(found)/float64(total),
		fmt.Sprintf("%d/%d unicode-named functions found in analysis", found, total),
		map[string]any{"found": found, "total": total, "missing_functions": capEvidence(missing)})
}

// checkDeepNesting verifies high-complexity ground-truth functions come back
// with high CCN, which means nested control flow was actually parsed.
func checkDeepNesting(a *Analysis, gt *GroundTruth) CheckResult {
	deep := gt.functionsByCCNRange(10, 1<<30)
	if len(deep) == 0 {
		return result("RL-4", "Deep nesting detected", CategoryReliability, SeverityMedium,
			true, "no deeply nested functions in ground truth to validate",
			map[string]any{"deep_function_count": 0})
	}

	detected := 0
	var shallow []map[string]any
	for _, ref := range deep {
		fn, ok := a.findFunction(ref.File, ref.Function, ref.Truth.CCN)
		if ok && fn.CCN >= 10 {
			detected++
		} else {
			actual := any("NOT FOUND")
			if ok {
				actual = fn.CCN
			}
			shallow = append(shallow, map[string]any{
				"file": ref.File, "function": ref.Function,
				"expected_ccn": ref.Truth.CCN, "actual_ccn": actual,
			})
		}
	}

	total := len(deep)
	return partialResult("RL-4", "Deep nesting detected", CategoryReliability, SeverityMedium,
		float64(detected)/float64(total),
		fmt.Sprintf("%d/%d deeply nested functions detected with CCN >= 10", detected, total),
		map[string]any{"detected": detected, "total": total, "shallow_functions": capEvidence(shallow)})
}

// checkQualifiedNames passes when the analysis contains qualified
// (Class.method) or anonymous function names, which shows the parser copes
// with nested structure. It inspects the analysis only.
func checkQualifiedNames(a *Analysis, _ *GroundTruth) CheckResult {
	qualified, anonymous := 0, 0
	for _, f := range a.Files {
		for _, fn := range f.Functions {
			if strings.Contains(fn.Name, ".") || strings.Contains(fn.Name, "::") {
				qualified++
			}
			lower := strings.ToLower(fn.Name)
			if strings.Contains(lower, "(anonymous)") || strings.Contains(lower, "lambda") {
				anonymous++
			}
		}
	}
	passed := qualified > 0 || anonymous > 0
	return result("RL-5", "Qualified and anonymous functions handled", CategoryReliability, SeverityLow,
		passed,
		fmt.Sprintf("detected %d qualified and %d anonymous functions", qualified, anonymous),
		map[string]any{"qualified_count": qualified, "anonymous_count": anonymous})
}

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}
