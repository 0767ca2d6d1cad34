package evaluation

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDecide(t *testing.T) {
	cases := []struct {
		score float64
		want  Decision
	}{
		{1.0, DecisionStrongPass},
		{0.80, DecisionStrongPass},
		{0.79, DecisionPass},
		{0.70, DecisionPass},
		{0.69, DecisionWeakPass},
		{0.60, DecisionWeakPass},
		{0.59, DecisionFail},
		{0, DecisionFail},
	}
	for _, tc := range cases {
		if got := Decide(tc.score); got != tc.want {
			t.Errorf("Decide(%.2f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestPartialResult(t *testing.T) {
	r := partialResult("X-1", "x", CategoryAccuracy, SeverityLow, 1.5, "m", nil)
	if r.Score != 1.0 || !r.Passed {
		t.Errorf("clamp high: score=%v passed=%v", r.Score, r.Passed)
	}
	r = partialResult("X-1", "x", CategoryAccuracy, SeverityLow, -0.2, "m", nil)
	if r.Score != 0 || r.Passed {
		t.Errorf("clamp low: score=%v passed=%v", r.Score, r.Passed)
	}
	r = partialResult("X-1", "x", CategoryAccuracy, SeverityLow, 0.8, "m", nil)
	if !r.Passed {
		t.Error("score 0.8 should count as passed")
	}
	r = partialResult("X-1", "x", CategoryAccuracy, SeverityLow, 0.79, "m", nil)
	if r.Passed {
		t.Error("score 0.79 should not count as passed")
	}
}

func TestLoadAndMergeGroundTruth(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("go.json", `{
		"files": {
			"simple.go": {
				"expected_functions": 1, "total_ccn": 1,
				"functions": {"add": {"ccn": 1, "nloc": 3, "params": 2, "start_line": 5, "end_line": 8}}
			}
		}
	}`)
	write("python.json", `{
		"files": {
			"simple.py": {
				"expected_functions": 2, "total_ccn": 12,
				"functions": {
					"run": {"ccn": 11, "nloc": 20, "params": 1, "start_line": 1, "end_line": 25},
					"noop": {"ccn": 1, "nloc": 2, "params": 0, "start_line": 30, "end_line": 32}
				}
			}
		}
	}`)

	byLang, err := LoadGroundTruthDir(dir)
	if err != nil {
		t.Fatalf("LoadGroundTruthDir: %v", err)
	}
	if len(byLang) != 2 {
		t.Fatalf("languages = %d, want 2", len(byLang))
	}

	merged := MergeGroundTruth(byLang)
	if len(merged.Languages) != 2 || merged.Languages[0] != "go" {
		t.Errorf("languages = %v", merged.Languages)
	}
	if merged.TotalFunctions != 3 || merged.TotalCCN != 13 {
		t.Errorf("totals = %d funcs, %d ccn", merged.TotalFunctions, merged.TotalCCN)
	}
	if _, ok := merged.Files["python/simple.py"]; !ok {
		t.Error("merged files missing python/ prefix")
	}

	if _, err := LoadGroundTruthDir(t.TempDir()); err == nil {
		t.Error("empty fixture dir accepted")
	}
}

func TestFunctionsByCCNRange(t *testing.T) {
	gt := &GroundTruth{Files: map[string]FileTruth{
		"b.go": {Functions: map[string]FunctionTruth{"medium": {CCN: 12}}},
		"a.go": {Functions: map[string]FunctionTruth{
			"simple": {CCN: 1},
			"big":    {CCN: 25},
		}},
	}}
	refs := gt.functionsByCCNRange(10, 20)
	if len(refs) != 1 || refs[0].Function != "medium" {
		t.Fatalf("refs = %+v", refs)
	}
	all := gt.functionsByCCNRange(1, 100)
	if len(all) != 3 || all[0].File != "a.go" || all[0].Function != "big" {
		t.Fatalf("all = %+v", all)
	}
}

func TestFindFunction(t *testing.T) {
	a := &Analysis{Files: []AnalysisFile{
		{Path: "repo/src/util.go", Functions: []AnalysisFunction{
			{Name: "pkg.helper", CCN: 4},
		}},
		{Path: "repo/other/util.go", Functions: []AnalysisFunction{
			{Name: "helper", CCN: 9},
		}},
	}}

	fn, ok := a.findFunction("util.go", "helper", 9)
	if !ok || fn.CCN != 9 {
		t.Errorf("closest-CCN match: %+v ok=%v", fn, ok)
	}
	fn, ok = a.findFunction("src/util.go", "helper", 0)
	if !ok || fn.Name != "pkg.helper" {
		t.Errorf("qualified-suffix match: %+v ok=%v", fn, ok)
	}
	if _, ok := a.findFunction("util.go", "missing", 1); ok {
		t.Error("unknown function matched")
	}
}

func simpleGroundTruth() *GroundTruth {
	return &GroundTruth{
		Languages: []string{"go"},
		Files: map[string]FileTruth{
			"go/calc.go": {
				ExpectedFunctions: 2,
				TotalCCN:          2,
				Functions: map[string]FunctionTruth{
					"add": {CCN: 1, NLOC: 3, Params: 2, StartLine: 5, EndLine: 8},
					"sub": {CCN: 1, NLOC: 3, Params: 2, StartLine: 10, EndLine: 13},
				},
			},
		},
		TotalFunctions: 2,
		TotalCCN:       2,
	}
}

func TestSimpleFunctionCheck(t *testing.T) {
	gt := simpleGroundTruth()
	a := &Analysis{Files: []AnalysisFile{
		{Path: "fixtures/go/calc.go", Language: "Go", Functions: []AnalysisFunction{
			{Name: "add", CCN: 1, NLOC: 3, ParameterCount: 2, StartLine: 5, EndLine: 8},
			{Name: "sub", CCN: 3, NLOC: 3, ParameterCount: 2, StartLine: 10, EndLine: 13},
		}},
	}}

	res := checkSimpleFunctions(a, gt)
	if !almostEqual(res.Score, 0.5) || res.Passed {
		t.Errorf("score=%v passed=%v, want 0.5 fail", res.Score, res.Passed)
	}

	empty := &GroundTruth{Files: map[string]FileTruth{}}
	res = checkSimpleFunctions(a, empty)
	if !res.Passed || res.Score != 1.0 {
		t.Errorf("empty ground truth: %+v", res)
	}
}

func TestCCNBandTolerance(t *testing.T) {
	gt := &GroundTruth{Files: map[string]FileTruth{
		"go/hard.go": {Functions: map[string]FunctionTruth{
			"exact": {CCN: 12},
			"close": {CCN: 15},
			"wrong": {CCN: 18},
		}},
	}}
	a := &Analysis{Files: []AnalysisFile{
		{Path: "go/hard.go", Functions: []AnalysisFunction{
			{Name: "exact", CCN: 12},
			{Name: "close", CCN: 17}, // off by 2, inside tolerance
			{Name: "wrong", CCN: 25}, // off by 7
		}},
	}}

	res := checkCCNBand(a, gt, "AC-2", "band", 10, 20, 2)
	want := (1.0 + 0.8) / 3.0
	if !almostEqual(res.Score, want) {
		t.Errorf("score = %v, want %v", res.Score, want)
	}
	if res.Passed {
		t.Error("band check should fail below 0.8")
	}
}

func TestFunctionCountCheck(t *testing.T) {
	gt := simpleGroundTruth()
	a := &Analysis{Files: []AnalysisFile{
		{Path: "go/calc.go", Functions: []AnalysisFunction{{Name: "add", CCN: 1}}},
	}}
	res := checkFunctionCount(a, gt)
	if !almostEqual(res.Score, 0.5) {
		t.Errorf("score = %v, want 0.5", res.Score)
	}

	a.Files[0].Functions = append(a.Files[0].Functions, AnalysisFunction{Name: "sub", CCN: 1})
	res = checkFunctionCount(a, gt)
	if !res.Passed || res.Score != 1.0 {
		t.Errorf("full detection: %+v", res)
	}
}

func TestSuiteRunRollup(t *testing.T) {
	fixed := func(id string, cat Category, score float64) Check {
		return Check{
			ID: id, Name: id, Category: cat, Severity: SeverityLow,
			Eval: func(a *Analysis, gt *GroundTruth) CheckResult {
				return partialResult(id, id, cat, SeverityLow, score, "fixed", nil)
			},
		}
	}
	suite := &Suite{
		Name: "test",
		Checks: []Check{
			fixed("Z-1", CategoryAccuracy, 1.0),
			fixed("A-1", CategoryAccuracy, 0.5),
			fixed("B-1", CategoryCoverage, 1.0),
		},
		CategoryWeights: map[Category]float64{
			CategoryAccuracy: 0.40,
			CategoryCoverage: 0.25,
		},
	}

	report := suite.Run(&Analysis{}, &GroundTruth{}, "a.json", "gt/")
	if report.Checks[0].CheckID != "A-1" {
		t.Errorf("checks not sorted: %s first", report.Checks[0].CheckID)
	}
	if !almostEqual(report.CategoryScores["accuracy"], 0.75) {
		t.Errorf("accuracy score = %v", report.CategoryScores["accuracy"])
	}
	// (0.75*0.40 + 1.0*0.25) / 0.65
	want := (0.75*0.40 + 1.0*0.25) / 0.65
	if !almostEqual(report.OverallScore, want) {
		t.Errorf("overall = %v, want %v", report.OverallScore, want)
	}
	if report.Decision != DecisionStrongPass {
		t.Errorf("decision = %s", report.Decision)
	}
	if report.TotalChecks() != 3 || report.PassedChecks() != 2 || report.FailedChecks() != 1 {
		t.Errorf("counts = %d/%d/%d", report.TotalChecks(), report.PassedChecks(), report.FailedChecks())
	}
}

func TestRegistryListAndDisable(t *testing.T) {
	checks := List()
	if len(checks) == 0 {
		t.Fatal("no registered checks")
	}
	for i := 1; i < len(checks); i++ {
		if checks[i-1].ID >= checks[i].ID {
			t.Fatalf("List not sorted: %s before %s", checks[i-1].ID, checks[i].ID)
		}
	}
	if _, ok := Get("ac-1"); !ok {
		t.Error("Get is not case-insensitive")
	}

	Disable("AC-7")
	t.Cleanup(func() { delete(disabled, "ac-7") })
	for _, c := range List() {
		if c.ID == "AC-7" {
			t.Error("disabled check still listed")
		}
	}
	if _, ok := Get("AC-7"); !ok {
		t.Error("disabled check should stay resolvable by ID")
	}
}

func TestReportCriticalFailures(t *testing.T) {
	r := &Report{Checks: []CheckResult{
		{CheckID: "AC-1", Severity: SeverityCritical, Passed: false},
		{CheckID: "AC-2", Severity: SeverityHigh, Passed: false},
		{CheckID: "AC-4", Severity: SeverityCritical, Passed: true},
	}}
	crit := r.CriticalFailures()
	if len(crit) != 1 || crit[0].CheckID != "AC-1" {
		t.Errorf("critical failures = %+v", crit)
	}
}
