package evaluation

import (
	"sort"
	"strings"
	"time"
)

// Check is a single registered check. Weight scales its contribution within
// its category; zero means weight 1.
type Check struct {
	ID       string
	Name     string
	Category Category
	Severity Severity
	Weight   float64
	Eval     func(a *Analysis, gt *GroundTruth) CheckResult
}

var (
	registry   []Check
	checkIndex = map[string]int{} // lower(checkID) -> index
	disabled   = map[string]bool{}
)

// Register adds a check to the built-in registry. Re-registering an ID
// replaces the earlier entry, which lets declarative suites override
// built-ins.
func Register(c Check) {
	key := strings.ToLower(strings.TrimSpace(c.ID))
	if idx, ok := checkIndex[key]; ok {
		registry[idx] = c
		return
	}
	registry = append(registry, c)
	checkIndex[key] = len(registry) - 1
}

// Disable removes a check from List without unregistering it.
func Disable(id string) {
	disabled[strings.ToLower(strings.TrimSpace(id))] = true
}

// List returns enabled checks sorted by ID.
func List() []Check {
	out := make([]Check, 0, len(registry))
	for _, c := range registry {
		if disabled[strings.ToLower(c.ID)] {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a registered check by ID.
func Get(id string) (Check, bool) {
	idx, ok := checkIndex[strings.ToLower(strings.TrimSpace(id))]
	if !ok || idx < 0 || idx >= len(registry) {
		return Check{}, false
	}
	return registry[idx], true
}

// DefaultCategoryWeights is the rollup weighting used when a suite does not
// override it.
var DefaultCategoryWeights = map[Category]float64{
	CategoryAccuracy:    0.40,
	CategoryCoverage:    0.25,
	CategoryPerformance: 0.15,
	CategoryReliability: 0.20,
}

// Suite is a runnable set of checks with category weights.
type Suite struct {
	Name            string
	Checks          []Check
	CategoryWeights map[Category]float64
}

// DefaultSuite runs every enabled registered check with default weights.
func DefaultSuite() *Suite {
	return &Suite{Name: "default", Checks: List(), CategoryWeights: DefaultCategoryWeights}
}

// Run evaluates every check and rolls scores up to a decision. Within a
// category each check contributes score*weight; categories combine using the
// suite weights, renormalized over the categories actually present.
func (s *Suite) Run(a *Analysis, gt *GroundTruth, analysisPath, groundTruthPath string) *Report {
	report := &Report{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		AnalysisPath:    analysisPath,
		GroundTruthPath: groundTruthPath,
		CategoryScores:  map[string]float64{},
	}

	catScore := map[Category]float64{}
	catWeight := map[Category]float64{}
	for _, c := range s.Checks {
		res := c.Eval(a, gt)
		report.Checks = append(report.Checks, res)

		w := c.Weight
		if w <= 0 {
			w = 1
		}
		catScore[res.Category] += res.Score * w
		catWeight[res.Category] += w
	}
	sort.Slice(report.Checks, func(i, j int) bool {
		return report.Checks[i].CheckID < report.Checks[j].CheckID
	})

	weights := s.CategoryWeights
	if len(weights) == 0 {
		weights = DefaultCategoryWeights
	}

	var total, totalWeight float64
	for cat, sum := range catScore {
		score := sum / catWeight[cat]
		report.CategoryScores[string(cat)] = score
		cw, ok := weights[cat]
		if !ok {
			cw = 1
		}
		total += score * cw
		totalWeight += cw
	}
	if totalWeight > 0 {
		report.OverallScore = total / totalWeight
	}
	report.Decision = Decide(report.OverallScore)
	return report
}
