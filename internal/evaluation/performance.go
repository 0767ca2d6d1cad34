package evaluation

import "fmt"

// Performance budgets mirror the analyzer's own targets: a fixture sweep
// finishes well under half a minute, and throughput stays above one file per
// second once the run is big enough to measure.
const (
	maxAnalysisDurationMS = 30_000
	minFilesPerSecond     = 1.0
)

func init() {
	Register(Check{
		ID: "PF-1", Name: "Analysis duration within budget",
		Category: CategoryPerformance, Severity: SeverityMedium,
		Eval: checkAnalysisDuration,
	})
	Register(Check{
		ID: "PF-2", Name: "Analysis throughput",
		Category: CategoryPerformance, Severity: SeverityLow,
		Eval: checkAnalysisThroughput,
	})
}

func checkAnalysisDuration(a *Analysis, _ *GroundTruth) CheckResult {
	dur := a.Summary.DurationMS
	if dur <= 0 {
		return result("PF-1", "Analysis duration within budget", CategoryPerformance, SeverityMedium,
			false, "analysis did not record a duration", nil)
	}
	passed := dur <= maxAnalysisDurationMS
	return result("PF-1", "Analysis duration within budget", CategoryPerformance, SeverityMedium,
		passed,
		fmt.Sprintf("analysis took %dms (budget %dms)", dur, int64(maxAnalysisDurationMS)),
		map[string]any{"duration_ms": dur, "budget_ms": maxAnalysisDurationMS})
}

func checkAnalysisThroughput(a *Analysis, _ *GroundTruth) CheckResult {
	files := a.Summary.TotalFiles
	if files == 0 {
		files = len(a.Files)
	}
	dur := a.Summary.DurationMS
	if dur <= 0 || files == 0 {
		return result("PF-2", "Analysis throughput", CategoryPerformance, SeverityLow,
			false, "analysis did not record duration and file counts", nil)
	}
	perSec := float64(files) / (float64(dur) / 1000.0)
	// Tiny runs finish in a few milliseconds; the rate is meaningless there.
	if files < 10 {
		return result("PF-2", "Analysis throughput", CategoryPerformance, SeverityLow,
			true, fmt.Sprintf("run too small to rate (%d files)", files),
			map[string]any{"files": files, "duration_ms": dur})
	}
	passed := perSec >= minFilesPerSecond
	return result("PF-2", "Analysis throughput", CategoryPerformance, SeverityLow,
		passed,
		fmt.Sprintf("%.1f files/sec (%d files in %dms)", perSec, files, dur),
		map[string]any{"files_per_second": perSec, "files": files, "duration_ms": dur})
}
