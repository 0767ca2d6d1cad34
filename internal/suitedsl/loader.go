// Package suitedsl loads declarative check suites from YAML and compiles
// them onto the evaluation registry. A suite references built-in checks by
// id, may reweight or disable them, and can declare simple threshold checks
// of its own.
package suitedsl

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/evaluation"
)

type suiteFile struct {
	Name            string             `yaml:"name"`
	CategoryWeights map[string]float64 `yaml:"category_weights"`
	Disable         []string           `yaml:"disable"`
	Checks          []suiteCheck       `yaml:"checks"`
}

type suiteCheck struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Category string  `yaml:"category"`
	Severity string  `yaml:"severity"`
	Weight   float64 `yaml:"weight"`

	// Declarative threshold check over a summary metric. Empty metric means
	// the entry references a built-in check.
	Metric string   `yaml:"metric"` // total_files|total_functions|duration_ms|max_ccn
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
}

var validCategories = map[string]evaluation.Category{
	"accuracy":    evaluation.CategoryAccuracy,
	"coverage":    evaluation.CategoryCoverage,
	"performance": evaluation.CategoryPerformance,
	"reliability": evaluation.CategoryReliability,
}

var validSeverities = map[string]evaluation.Severity{
	"critical": evaluation.SeverityCritical,
	"high":     evaluation.SeverityHigh,
	"medium":   evaluation.SeverityMedium,
	"low":      evaluation.SeverityLow,
}

// Load reads a suite file and resolves it against the registry. Suites
// without a checks list run every registered check.
func Load(path string) (*evaluation.Suite, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	var sf suiteFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return compileSuite(sf)
}

func compileSuite(sf suiteFile) (*evaluation.Suite, error) {
	suite := &evaluation.Suite{Name: sf.Name}
	if suite.Name == "" {
		suite.Name = "default"
	}

	if len(sf.CategoryWeights) > 0 {
		suite.CategoryWeights = map[evaluation.Category]float64{}
		for name, w := range sf.CategoryWeights {
			cat, ok := validCategories[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("unknown category %q", name)
			}
			if w < 0 {
				return nil, fmt.Errorf("category %q has negative weight", name)
			}
			suite.CategoryWeights[cat] = w
		}
	}

	skip := map[string]bool{}
	for _, id := range sf.Disable {
		skip[strings.ToLower(strings.TrimSpace(id))] = true
	}

	if len(sf.Checks) == 0 {
		for _, c := range evaluation.List() {
			if !skip[strings.ToLower(c.ID)] {
				suite.Checks = append(suite.Checks, c)
			}
		}
		return suite, nil
	}

	for _, sc := range sf.Checks {
		if skip[strings.ToLower(strings.TrimSpace(sc.ID))] {
			continue
		}
		c, err := compileCheck(sc)
		if err != nil {
			return nil, fmt.Errorf("compile check %q: %w", sc.ID, err)
		}
		suite.Checks = append(suite.Checks, c)
	}
	return suite, nil
}

func compileCheck(sc suiteCheck) (evaluation.Check, error) {
	if sc.ID == "" {
		return evaluation.Check{}, fmt.Errorf("missing id")
	}

	if sc.Metric == "" {
		base, ok := evaluation.Get(sc.ID)
		if !ok {
			return evaluation.Check{}, fmt.Errorf("not a registered check")
		}
		if sc.Weight > 0 {
			base.Weight = sc.Weight
		}
		if sc.Severity != "" {
			sev, ok := validSeverities[strings.ToLower(sc.Severity)]
			if !ok {
				return evaluation.Check{}, fmt.Errorf("unknown severity %q", sc.Severity)
			}
			base.Severity = sev
		}
		return base, nil
	}

	return compileThreshold(sc)
}

// compileThreshold builds a check that compares one summary metric against
// declared bounds.
func compileThreshold(sc suiteCheck) (evaluation.Check, error) {
	if sc.Name == "" {
		return evaluation.Check{}, fmt.Errorf("missing required fields (name)")
	}
	cat, ok := validCategories[strings.ToLower(sc.Category)]
	if !ok {
		return evaluation.Check{}, fmt.Errorf("unknown category %q", sc.Category)
	}
	sev, ok := validSeverities[strings.ToLower(sc.Severity)]
	if !ok {
		return evaluation.Check{}, fmt.Errorf("unknown severity %q", sc.Severity)
	}
	if sc.Min == nil && sc.Max == nil {
		return evaluation.Check{}, fmt.Errorf("threshold check needs min or max")
	}

	metric := strings.ToLower(strings.TrimSpace(sc.Metric))
	extract, err := metricExtractor(metric)
	if err != nil {
		return evaluation.Check{}, err
	}

	id, name := sc.ID, sc.Name
	min, max := sc.Min, sc.Max
	return evaluation.Check{
		ID:       id,
		Name:     name,
		Category: cat,
		Severity: sev,
		Weight:   sc.Weight,
		Eval: func(a *evaluation.Analysis, _ *evaluation.GroundTruth) evaluation.CheckResult {
			value := extract(a)
			passed := true
			if min != nil && value < *min {
				passed = false
			}
			if max != nil && value > *max {
				passed = false
			}
			msg := fmt.Sprintf("%s = %g", metric, value)
			if !passed {
				msg += " (out of bounds)"
			}
			score := 0.0
			if passed {
				score = 1.0
			}
			return evaluation.CheckResult{
				CheckID: id, Name: name, Category: cat, Severity: sev,
				Passed: passed, Score: score, Message: msg,
				Evidence: map[string]any{"metric": metric, "value": value},
			}
		},
	}, nil
}

func metricExtractor(metric string) (func(*evaluation.Analysis) float64, error) {
	switch metric {
	case "total_files":
		return func(a *evaluation.Analysis) float64 {
			if a.Summary.TotalFiles > 0 {
				return float64(a.Summary.TotalFiles)
			}
			return float64(len(a.Files))
		}, nil
	case "total_functions":
		return func(a *evaluation.Analysis) float64 {
			if a.Summary.TotalFunctions > 0 {
				return float64(a.Summary.TotalFunctions)
			}
			n := 0
			for _, f := range a.Files {
				n += len(f.Functions)
			}
			return float64(n)
		}, nil
	case "duration_ms":
		return func(a *evaluation.Analysis) float64 { return float64(a.Summary.DurationMS) }, nil
	case "max_ccn":
		return func(a *evaluation.Analysis) float64 {
			max := 0
			for _, f := range a.Files {
				for _, fn := range f.Functions {
					if fn.CCN > max {
						max = fn.CCN
					}
				}
			}
			return float64(max)
		}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
}
