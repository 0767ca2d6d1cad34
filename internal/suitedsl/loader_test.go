package suitedsl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/evaluation"
)

func writeSuite(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadEmptySuiteRunsAllChecks(t *testing.T) {
	suite, err := Load(writeSuite(t, "name: everything\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if suite.Name != "everything" {
		t.Errorf("name = %q", suite.Name)
	}
	if len(suite.Checks) != len(evaluation.List()) {
		t.Errorf("checks = %d, want %d", len(suite.Checks), len(evaluation.List()))
	}
}

func TestLoadDisableList(t *testing.T) {
	suite, err := Load(writeSuite(t, `
name: trimmed
disable:
  - AC-7
  - " cv-3 "
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, c := range suite.Checks {
		if c.ID == "AC-7" || c.ID == "CV-3" {
			t.Errorf("disabled check %s present", c.ID)
		}
	}
	if len(suite.Checks) != len(evaluation.List())-2 {
		t.Errorf("checks = %d", len(suite.Checks))
	}
}

func TestLoadBuiltinOverrides(t *testing.T) {
	suite, err := Load(writeSuite(t, `
name: reweighted
category_weights:
  accuracy: 0.6
  coverage: 0.4
checks:
  - id: AC-1
    weight: 3
    severity: high
  - id: ac-4
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(suite.Checks) != 2 {
		t.Fatalf("checks = %d, want 2", len(suite.Checks))
	}
	if suite.Checks[0].Weight != 3 || suite.Checks[0].Severity != evaluation.SeverityHigh {
		t.Errorf("AC-1 override = %+v", suite.Checks[0])
	}
	if suite.Checks[1].ID != "AC-4" {
		t.Errorf("case-insensitive lookup returned %q", suite.Checks[1].ID)
	}
	if suite.CategoryWeights[evaluation.CategoryAccuracy] != 0.6 {
		t.Errorf("weights = %v", suite.CategoryWeights)
	}
}

func TestLoadThresholdCheck(t *testing.T) {
	suite, err := Load(writeSuite(t, `
name: perf
checks:
  - id: CUSTOM-1
    name: analysis stays under a minute
    category: performance
    severity: medium
    metric: duration_ms
    max: 60000
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(suite.Checks) != 1 {
		t.Fatalf("checks = %d", len(suite.Checks))
	}

	check := suite.Checks[0]
	fast := &evaluation.Analysis{Summary: evaluation.AnalysisSummary{DurationMS: 1500}}
	if res := check.Eval(fast, nil); !res.Passed {
		t.Errorf("fast run failed: %+v", res)
	}
	slow := &evaluation.Analysis{Summary: evaluation.AnalysisSummary{DurationMS: 90000}}
	if res := check.Eval(slow, nil); res.Passed {
		t.Errorf("slow run passed: %+v", res)
	}
}

func TestLoadMaxCCNMetric(t *testing.T) {
	suite, err := Load(writeSuite(t, `
checks:
  - id: CUSTOM-2
    name: complexity ceiling
    category: reliability
    severity: high
    metric: max_ccn
    max: 30
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a := &evaluation.Analysis{Files: []evaluation.AnalysisFile{
		{Functions: []evaluation.AnalysisFunction{{CCN: 12}, {CCN: 45}}},
	}}
	if res := suite.Checks[0].Eval(a, nil); res.Passed {
		t.Errorf("ccn 45 passed ceiling 30: %+v", res)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown builtin", "checks:\n  - id: NOPE-1\n", "not a registered check"},
		{"unknown category", `
checks:
  - id: X-1
    name: x
    category: velocity
    severity: low
    metric: total_files
    min: 1
`, `unknown category "velocity"`},
		{"missing bounds", `
checks:
  - id: X-1
    name: x
    category: coverage
    severity: low
    metric: total_files
`, "threshold check needs min or max"},
		{"unknown metric", `
checks:
  - id: X-1
    name: x
    category: coverage
    severity: low
    metric: stars
    min: 1
`, `unknown metric "stars"`},
		{"bad category weight", "category_weights:\n  velocity: 1\n", `unknown category "velocity"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeSuite(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}
