// Package evaluation scores analyzer output against hand-authored ground
// truth. Checks are small functions that compare an analysis snapshot to the
// expected values and return a pass/fail or partial score in [0,1]; a suite
// rolls the results up into per-category scores and an overall decision.
package evaluation

import (
	"fmt"
	"sort"
)

// Category groups checks for weighted rollup.
type Category string

const (
	CategoryAccuracy    Category = "accuracy"
	CategoryCoverage    Category = "coverage"
	CategoryPerformance Category = "performance"
	CategoryReliability Category = "reliability"
)

// Severity ranks how much a failing check should worry the reader.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// partialPassThreshold is the score at or above which a partial check is
// still counted as passed.
const partialPassThreshold = 0.8

// CheckResult is the outcome of a single check.
type CheckResult struct {
	CheckID  string         `json:"check_id"`
	Name     string         `json:"name"`
	Category Category       `json:"category"`
	Severity Severity       `json:"severity"`
	Passed   bool           `json:"passed"`
	Score    float64        `json:"score"`
	Message  string         `json:"message"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

func result(id, name string, cat Category, sev Severity, passed bool, msg string, evidence map[string]any) CheckResult {
	score := 0.0
	if passed {
		score = 1.0
	}
	return CheckResult{
		CheckID:  id,
		Name:     name,
		Category: cat,
		Severity: sev,
		Passed:   passed,
		Score:    score,
		Message:  msg,
		Evidence: evidence,
	}
}

// partialResult clamps score to [0,1] and derives Passed from the partial
// pass threshold.
func partialResult(id, name string, cat Category, sev Severity, score float64, msg string, evidence map[string]any) CheckResult {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return CheckResult{
		CheckID:  id,
		Name:     name,
		Category: cat,
		Severity: sev,
		Passed:   score >= partialPassThreshold,
		Score:    score,
		Message:  msg,
		Evidence: evidence,
	}
}

// Decision is the suite verdict derived from the overall score.
type Decision string

const (
	DecisionStrongPass Decision = "strong_pass"
	DecisionPass       Decision = "pass"
	DecisionWeakPass   Decision = "weak_pass"
	DecisionFail       Decision = "fail"
)

// Decide maps an overall score in [0,1] onto a verdict.
func Decide(score float64) Decision {
	switch {
	case score >= 0.80:
		return DecisionStrongPass
	case score >= 0.70:
		return DecisionPass
	case score >= 0.60:
		return DecisionWeakPass
	default:
		return DecisionFail
	}
}

// Report is the full outcome of a suite run.
type Report struct {
	Timestamp       string             `json:"timestamp"`
	AnalysisPath    string             `json:"analysis_path"`
	GroundTruthPath string             `json:"ground_truth_path"`
	Checks          []CheckResult      `json:"checks"`
	CategoryScores  map[string]float64 `json:"category_scores"`
	OverallScore    float64            `json:"overall_score"`
	Decision        Decision           `json:"decision"`
}

func (r *Report) TotalChecks() int { return len(r.Checks) }

func (r *Report) PassedChecks() int {
	n := 0
	for _, c := range r.Checks {
		if c.Passed {
			n++
		}
	}
	return n
}

func (r *Report) FailedChecks() int { return len(r.Checks) - r.PassedChecks() }

// CriticalFailures lists failed checks with critical severity.
func (r *Report) CriticalFailures() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed && c.Severity == SeverityCritical {
			out = append(out, c)
		}
	}
	return out
}

// ByCategory returns the checks in one category, sorted by check id.
func (r *Report) ByCategory(cat Category) []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckID < out[j].CheckID })
	return out
}

// Summary renders the one-line verdict used by the CLI.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d/%d checks passed, score %.2f, decision %s",
		r.PassedChecks(), r.TotalChecks(), r.OverallScore, r.Decision)
}
