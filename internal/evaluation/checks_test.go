package evaluation

import "testing"

func TestFilesCovered(t *testing.T) {
	gt := &GroundTruth{Files: map[string]FileTruth{
		"go/calc.go":  {ExpectedFunctions: 2},
		"go/empty.go": {ExpectedFunctions: 0},
		"go/gone.go":  {ExpectedFunctions: 1},
	}}
	a := &Analysis{Files: []AnalysisFile{{Path: "fixtures/go/calc.go"}}}

	res := checkFilesCovered(a, gt)
	// calc.go present, empty.go counts as covered, gone.go missing
	if !almostEqual(res.Score, 2.0/3.0) {
		t.Errorf("score = %v", res.Score)
	}
}

func TestFunctionsCovered(t *testing.T) {
	gt := &GroundTruth{Files: map[string]FileTruth{
		"go/calc.go":  {ExpectedFunctions: 2},
		"go/empty.go": {ExpectedFunctions: 0},
	}}
	a := &Analysis{Files: []AnalysisFile{
		{Path: "go/calc.go", Functions: []AnalysisFunction{{Name: "add", CCN: 1}}},
	}}
	res := checkFunctionsCovered(a, gt)
	if !res.Passed || res.Score != 1.0 {
		t.Errorf("res = %+v", res)
	}

	a.Files[0].Functions = nil
	res = checkFunctionsCovered(a, gt)
	if res.Passed || res.Score != 0 {
		t.Errorf("file without functions passed: %+v", res)
	}
}

func TestLanguagesCovered(t *testing.T) {
	gt := &GroundTruth{
		Languages: []string{"go", "python"},
		Files: map[string]FileTruth{
			"go/calc.go":      {ExpectedFunctions: 1},
			"python/calc.py":  {ExpectedFunctions: 1},
			"python/other.py": {ExpectedFunctions: 1},
		},
	}
	a := &Analysis{Files: []AnalysisFile{{Path: "go/calc.go"}}}
	res := checkLanguagesCovered(a, gt)
	if !almostEqual(res.Score, 0.5) {
		t.Errorf("score = %v", res.Score)
	}
}

func TestAnalysisDuration(t *testing.T) {
	a := &Analysis{Summary: AnalysisSummary{DurationMS: 1500}}
	if res := checkAnalysisDuration(a, nil); !res.Passed {
		t.Errorf("fast run failed: %+v", res)
	}
	a.Summary.DurationMS = 45_000
	if res := checkAnalysisDuration(a, nil); res.Passed {
		t.Errorf("slow run passed: %+v", res)
	}
	a.Summary.DurationMS = 0
	if res := checkAnalysisDuration(a, nil); res.Passed {
		t.Errorf("missing duration passed: %+v", res)
	}
}

func TestAnalysisThroughput(t *testing.T) {
	a := &Analysis{Summary: AnalysisSummary{TotalFiles: 100, DurationMS: 10_000}}
	if res := checkAnalysisThroughput(a, nil); !res.Passed {
		t.Errorf("10 files/sec failed: %+v", res)
	}
	a.Summary = AnalysisSummary{TotalFiles: 100, DurationMS: 200_000}
	if res := checkAnalysisThroughput(a, nil); res.Passed {
		t.Errorf("0.5 files/sec passed: %+v", res)
	}
	// tiny runs are not rated
	a.Summary = AnalysisSummary{TotalFiles: 3, DurationMS: 9_000}
	if res := checkAnalysisThroughput(a, nil); !res.Passed {
		t.Errorf("tiny run failed: %+v", res)
	}
}

func TestZeroFunctionFiles(t *testing.T) {
	gt := &GroundTruth{Files: map[string]FileTruth{
		"go/empty_file.go":   {ExpectedFunctions: 0},
		"go/comment_only.go": {ExpectedFunctions: 0},
		"go/calc.go":         {ExpectedFunctions: 2},
	}}

	// empty file reported with a phantom function
	a := &Analysis{Files: []AnalysisFile{
		{Path: "go/empty_file.go", Functions: []AnalysisFunction{{Name: "ghost"}}},
	}}
	res := checkZeroFunctionFiles(a, gt, "RL-1", "empty", "empty")
	if res.Passed || res.Score != 0 {
		t.Errorf("phantom function accepted: %+v", res)
	}

	// absent from the analysis counts as handled
	res = checkZeroFunctionFiles(&Analysis{}, gt, "RL-2", "comments", "comment")
	if !res.Passed || res.Score != 1.0 {
		t.Errorf("absent file counted wrong: %+v", res)
	}
}

func TestUnicodeNames(t *testing.T) {
	gt := &GroundTruth{Files: map[string]FileTruth{
		"go/unicode.go": {Functions: map[string]FunctionTruth{
			"计算": {CCN: 1},
			"add":  {CCN: 1},
		}},
	}}
	a := &Analysis{Files: []AnalysisFile{
		{Path: "go/unicode.go", Functions: []AnalysisFunction{{Name: "计算", CCN: 1}}},
	}}
	res := checkUnicodeNames(a, gt)
	if !res.Passed || res.Score != 1.0 {
		t.Errorf("unicode name not found: %+v", res)
	}
}

func TestDeepNesting(t *testing.T) {
	gt := &GroundTruth{Files: map[string]FileTruth{
		"go/nested.go": {Functions: map[string]FunctionTruth{
			"tangle": {CCN: 15},
		}},
	}}
	a := &Analysis{Files: []AnalysisFile{
		{Path: "go/nested.go", Functions: []AnalysisFunction{{Name: "tangle", CCN: 14}}},
	}}
	res := checkDeepNesting(a, gt)
	if !res.Passed {
		t.Errorf("ccn 14 not counted as deep: %+v", res)
	}

	a.Files[0].Functions[0].CCN = 2
	res = checkDeepNesting(a, gt)
	if res.Passed {
		t.Errorf("flattened function passed: %+v", res)
	}
}

func TestQualifiedNames(t *testing.T) {
	a := &Analysis{Files: []AnalysisFile{
		{Functions: []AnalysisFunction{{Name: "Calculator.add"}, {Name: "(anonymous)"}}},
	}}
	res := checkQualifiedNames(a, nil)
	if !res.Passed {
		t.Errorf("qualified names not detected: %+v", res)
	}
	if res = checkQualifiedNames(&Analysis{}, nil); res.Passed {
		t.Errorf("empty analysis passed: %+v", res)
	}
}
