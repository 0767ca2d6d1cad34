package evaluation

import "fmt"

func init() {
	Register(Check{
		ID: "AC-1", Name: "Simple functions CCN=1",
		Category: CategoryAccuracy, Severity: SeverityCritical,
		Eval: checkSimpleFunctions,
	})
	Register(Check{
		ID: "AC-2", Name: "Complex functions CCN 10-20",
		Category: CategoryAccuracy, Severity: SeverityHigh,
		Eval: func(a *Analysis, gt *GroundTruth) CheckResult {
			return checkCCNBand(a, gt, "AC-2", "Complex functions CCN 10-20", 10, 20, 2)
		},
	})
	Register(Check{
		ID: "AC-3", Name: "Massive functions CCN >= 20",
		Category: CategoryAccuracy, Severity: SeverityHigh,
		Eval: func(a *Analysis, gt *GroundTruth) CheckResult {
			return checkCCNBand(a, gt, "AC-3", "Massive functions CCN >= 20", 20, 100, 3)
		},
	})
	Register(Check{
		ID: "AC-4", Name: "Function count matches expected",
		Category: CategoryAccuracy, Severity: SeverityCritical,
		Eval: checkFunctionCount,
	})
	Register(Check{
		ID: "AC-5", Name: "NLOC accuracy within 10%",
		Category: CategoryAccuracy, Severity: SeverityMedium,
		Eval: checkNLOCAccuracy,
	})
	Register(Check{
		ID: "AC-6", Name: "Parameter count accuracy",
		Category: CategoryAccuracy, Severity: SeverityMedium,
		Eval: checkParameterCount,
	})
	Register(Check{
		ID: "AC-7", Name: "Line range accuracy",
		Category: CategoryAccuracy, Severity: SeverityLow,
		Eval: checkLineRanges,
	})
}

// checkSimpleFunctions verifies every ground-truth function with CCN=1 is
// reported with CCN=1.
func checkSimpleFunctions(a *Analysis, gt *GroundTruth) CheckResult {
	simple := gt.functionsByCCNRange(1, 1)
	if len(simple) == 0 {
		return result("AC-1", "Simple functions CCN=1", CategoryAccuracy, SeverityCritical,
			true, "no simple functions (CCN=1) in ground truth to validate",
			map[string]any{"simple_function_count": 0})
	}

	correct := 0
	var incorrect []map[string]any
	for _, ref := range simple {
		fn, ok := a.findFunction(ref.File, ref.Function, 1)
		switch {
		case !ok:
			incorrect = append(incorrect, map[string]any{
				"file": ref.File, "function": ref.Function,
				"expected_ccn": 1, "actual_ccn": "NOT FOUND",
			})
		case fn.CCN == 1:
			correct++
		default:
			incorrect = append(incorrect, map[string]any{
				"file": ref.File, "function": ref.Function,
				"expected_ccn": 1, "actual_ccn": fn.CCN,
			})
		}
	}

	total := len(simple)
	return partialResult("AC-1", "Simple functions CCN=1", CategoryAccuracy, SeverityCritical,
		float64(correct)/float64(total),
		fmt.Sprintf("%d/%d simple functions correctly identified with CCN=1", correct, total),
		map[string]any{"correct": correct, "total": total, "incorrect_functions": capEvidence(incorrect)})
}

// checkCCNBand scores a CCN band with a tolerance. Exact matches score 1,
// matches within tolerance score 0.8.
func checkCCNBand(a *Analysis, gt *GroundTruth, id, name string, lo, hi, tolerance int) CheckResult {
	sev := SeverityHigh
	funcs := gt.functionsByCCNRange(lo, hi)
	if len(funcs) == 0 {
		return result(id, name, CategoryAccuracy, sev, true,
			fmt.Sprintf("no functions with CCN %d-%d in ground truth to validate", lo, hi),
			map[string]any{"function_count": 0})
	}

	exact, close := 0, 0
	var incorrect []map[string]any
	for _, ref := range funcs {
		fn, ok := a.findFunction(ref.File, ref.Function, ref.Truth.CCN)
		if !ok {
			incorrect = append(incorrect, map[string]any{
				"file": ref.File, "function": ref.Function,
				"expected_ccn": ref.Truth.CCN, "actual_ccn": "NOT FOUND",
			})
			continue
		}
		diff := fn.CCN - ref.Truth.CCN
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
			exact++
		case diff <= tolerance:
			close++
		default:
			incorrect = append(incorrect, map[string]any{
				"file": ref.File, "function": ref.Function,
				"expected_ccn": ref.Truth.CCN, "actual_ccn": fn.CCN,
			})
		}
	}

	total := len(funcs)
	score := (float64(exact) + float64(close)*0.8) / float64(total)
	return partialResult(id, name, CategoryAccuracy, sev, score,
		fmt.Sprintf("%d exact, %d close (±%d), %d incorrect out of %d functions",
			exact, close, tolerance, len(incorrect), total),
		map[string]any{
			"exact_matches": exact, "close_matches": close, "total": total,
			"tolerance": tolerance, "incorrect_functions": capEvidence(incorrect),
		})
}

// checkFunctionCount compares total detected function counts per file.
func checkFunctionCount(a *Analysis, gt *GroundTruth) CheckResult {
	totalExpected, totalActual := 0, 0
	var mismatches []map[string]any

	for filename, ft := range gt.Files {
		totalExpected += ft.ExpectedFunctions
		actual := 0
		if af, ok := a.fileByName(filename); ok {
			actual = len(af.Functions)
		}
		totalActual += actual
		if actual != ft.ExpectedFunctions {
			mismatches = append(mismatches, map[string]any{
				"file": filename, "expected": ft.ExpectedFunctions, "actual": actual,
			})
		}
	}

	score := 1.0
	if totalExpected > 0 {
		lo, hi := totalActual, totalExpected
		if lo > hi {
			lo, hi = hi, lo
		}
		score = float64(lo) / float64(hi)
	} else if totalActual != 0 {
		score = 0
	}

	return partialResult("AC-4", "Function count matches expected", CategoryAccuracy, SeverityCritical,
		score,
		fmt.Sprintf("%d/%d functions detected (%d/%d files with count mismatch)",
			totalActual, totalExpected, len(mismatches), len(gt.Files)),
		map[string]any{
			"total_expected": totalExpected, "total_actual": totalActual,
			"files_with_mismatch": capEvidence(mismatches),
		})
}

// checkNLOCAccuracy accepts NLOC within 10% (at least ±1 line).
func checkNLOCAccuracy(a *Analysis, gt *GroundTruth) CheckResult {
	within := 0
	var outliers []map[string]any

	for filename, ft := range gt.Files {
		for name, truth := range ft.Functions {
			if truth.NLOC <= 0 {
				continue
			}
			fn, ok := a.findFunction(filename, name, truth.CCN)
			if !ok {
				continue
			}
			tolerance := truth.NLOC / 10
			if tolerance < 1 {
				tolerance = 1
			}
			diff := fn.NLOC - truth.NLOC
			if diff < 0 {
				diff = -diff
			}
			if diff <= tolerance {
				within++
			} else {
				outliers = append(outliers, map[string]any{
					"file": filename, "function": name,
					"expected_nloc": truth.NLOC, "actual_nloc": fn.NLOC, "diff": diff,
				})
			}
		}
	}

	total := within + len(outliers)
	score := 1.0
	if total > 0 {
		score = float64(within) / float64(total)
	}
	return partialResult("AC-5", "NLOC accuracy within 10%", CategoryAccuracy, SeverityMedium,
		score,
		fmt.Sprintf("%d/%d functions with NLOC within 10%% tolerance", within, total),
		map[string]any{"within_tolerance": within, "total": total, "outliers": capEvidence(outliers)})
}

// checkParameterCount requires exact parameter counts.
func checkParameterCount(a *Analysis, gt *GroundTruth) CheckResult {
	correct := 0
	var incorrect []map[string]any

	for filename, ft := range gt.Files {
		for name, truth := range ft.Functions {
			if truth.Params < 0 {
				continue
			}
			fn, ok := a.findFunction(filename, name, truth.CCN)
			if !ok {
				continue
			}
			if fn.ParameterCount == truth.Params {
				correct++
			} else {
				incorrect = append(incorrect, map[string]any{
					"file": filename, "function": name,
					"expected_params": truth.Params, "actual_params": fn.ParameterCount,
				})
			}
		}
	}

	total := correct + len(incorrect)
	score := 1.0
	if total > 0 {
		score = float64(correct) / float64(total)
	}
	return partialResult("AC-6", "Parameter count accuracy", CategoryAccuracy, SeverityMedium,
		score,
		fmt.Sprintf("%d/%d functions with correct parameter count", correct, total),
		map[string]any{"correct": correct, "total": total, "incorrect_functions": capEvidence(incorrect)})
}

// checkLineRanges scores start and end line accuracy independently.
func checkLineRanges(a *Analysis, gt *GroundTruth) CheckResult {
	correctStart, correctEnd, total := 0, 0, 0
	var incorrect []map[string]any

	for filename, ft := range gt.Files {
		for name, truth := range ft.Functions {
			if truth.StartLine < 1 || truth.EndLine < 1 {
				continue
			}
			total++
			fn, ok := a.findFunction(filename, name, truth.CCN)
			if !ok {
				incorrect = append(incorrect, map[string]any{
					"file": filename, "function": name, "actual": "NOT FOUND",
				})
				continue
			}
			startMatch := fn.StartLine == truth.StartLine
			endMatch := fn.EndLine == truth.EndLine
			if startMatch {
				correctStart++
			}
			if endMatch {
				correctEnd++
			}
			if !startMatch || !endMatch {
				incorrect = append(incorrect, map[string]any{
					"file": filename, "function": name,
					"expected_start": truth.StartLine, "actual_start": fn.StartLine,
					"expected_end": truth.EndLine, "actual_end": fn.EndLine,
				})
			}
		}
	}

	score := 1.0
	if total > 0 {
		score = float64(correctStart+correctEnd) / float64(2*total)
	}
	return partialResult("AC-7", "Line range accuracy", CategoryAccuracy, SeverityLow,
		score,
		fmt.Sprintf("start %d/%d, end %d/%d correct line ranges", correctStart, total, correctEnd, total),
		map[string]any{
			"correct_start": correctStart, "correct_end": correctEnd, "total": total,
			"incorrect_ranges": capEvidence(incorrect),
		})
}

// capEvidence keeps evidence lists small in serialized reports.
func capEvidence(items []map[string]any) []map[string]any {
	const limit = 10
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
