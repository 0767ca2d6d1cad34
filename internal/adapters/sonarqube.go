package adapters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var sonarqubeDDL = map[string]string{
	"lz_sonarqube_issues": `
		CREATE TABLE IF NOT EXISTS lz_sonarqube_issues (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			directory_id TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			issue_key TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			issue_type TEXT,
			severity TEXT,
			message TEXT,
			line_start INTEGER,
			line_end INTEGER,
			effort TEXT,
			status TEXT,
			tags TEXT,
			PRIMARY KEY (run_pk, file_id, issue_key)
		)`,
	"lz_sonarqube_metrics": `
		CREATE TABLE IF NOT EXISTS lz_sonarqube_metrics (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			directory_id TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			ncloc INTEGER,
			complexity INTEGER,
			cognitive_complexity INTEGER,
			duplicated_lines INTEGER,
			duplicated_lines_density DOUBLE,
			code_smells INTEGER,
			bugs INTEGER,
			vulnerabilities INTEGER,
			PRIMARY KEY (run_pk, file_id)
		)`,
}

var sonarqubeSchema = map[string]map[string]string{
	"lz_sonarqube_issues": {
		"run_pk":        "BIGINT",
		"file_id":       "TEXT",
		"relative_path": "TEXT",
		"issue_key":     "TEXT",
		"rule_id":       "TEXT",
	},
	"lz_sonarqube_metrics": {
		"run_pk":        "BIGINT",
		"file_id":       "TEXT",
		"relative_path": "TEXT",
		"ncloc":         "INTEGER",
	},
}

type sonarTextRange struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

type sonarIssue struct {
	Key       string         `json:"key"`
	Rule      string         `json:"rule"`
	Component string         `json:"component"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Line      int            `json:"line"`
	TextRange sonarTextRange `json:"text_range"`
	Effort    string         `json:"effort"`
	Status    string         `json:"status"`
	Tags      []string       `json:"tags"`
}

type sonarComponent struct {
	Path      string `json:"path"`
	Qualifier string `json:"qualifier"`
}

type sonarMeasure struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

type sonarMeasureSet struct {
	Measures []sonarMeasure `json:"measures"`
}

// sonarqubeData mirrors the nested results layout the SonarQube exporter
// produces, which differs from every other tool's payload.
type sonarqubeData struct {
	Results struct {
		Issues struct {
			Items []sonarIssue `json:"items"`
		} `json:"issues"`
		Components struct {
			ByKey map[string]sonarComponent `json:"by_key"`
		} `json:"components"`
		Measures struct {
			ByComponentKey map[string]sonarMeasureSet `json:"by_component_key"`
		} `json:"measures"`
	} `json:"results"`
}

// Sonarqube ingests issues and per-file measures.
type Sonarqube struct {
	Base
}

func (a *Sonarqube) Tool() string { return "sonarqube" }

// RelaxedMetadata reports that this adapter tolerates incomplete metadata.
func (a *Sonarqube) RelaxedMetadata() bool { return true }

func (a *Sonarqube) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data sonarqubeData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	issues := data.Results.Issues.Items
	components := data.Results.Components.ByKey
	if err := a.validateQuality(issues, components); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), sonarqubeDDL, sonarqubeSchema); err != nil {
		return 0, err
	}
	layoutPK, err := a.layoutRunPK(collection.CollectionRunID)
	if err != nil {
		return 0, err
	}
	runPK, err := a.createToolRun(env.Metadata, collection.CollectionRunID)
	if err != nil {
		return 0, err
	}

	var issueRows []lz.SonarqubeIssue
	for _, issue := range issues {
		component := components[issue.Component]
		if component.Path == "" {
			// Project-level issues carry no file path.
			continue
		}
		relativePath := a.normalize(component.Path)
		fileID, directoryID, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			a.logger().Error("DATA_QUALITY_ERROR",
				"tool", a.Tool(), "detail", "file not in layout: "+relativePath)
			return 0, fmt.Errorf("sonarqube file not in layout: %s", relativePath)
		}
		lineStart := issue.TextRange.StartLine
		if lineStart == 0 {
			lineStart = issue.Line
		}
		lineEnd := issue.TextRange.EndLine
		if lineEnd == 0 {
			lineEnd = lineStart
		}
		issueRows = append(issueRows, lz.SonarqubeIssue{
			RunPK:        runPK,
			FileID:       fileID,
			DirectoryID:  directoryID,
			RelativePath: relativePath,
			IssueKey:     issue.Key,
			RuleID:       issue.Rule,
			IssueType:    issue.Type,
			Severity:     issue.Severity,
			Message:      issue.Message,
			LineStart:    lineStart,
			LineEnd:      lineEnd,
			Effort:       issue.Effort,
			Status:       issue.Status,
			Tags:         strings.Join(issue.Tags, ","),
		})
	}
	if err := a.DB.InsertSonarqubeIssues(issueRows); err != nil {
		return 0, err
	}

	var metricRows []lz.SonarqubeMetric
	for componentKey, set := range data.Results.Measures.ByComponentKey {
		component := components[componentKey]
		if component.Qualifier != "FIL" || component.Path == "" {
			continue
		}
		relativePath := a.normalize(component.Path)
		fileID, directoryID, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			a.logger().Error("DATA_QUALITY_ERROR",
				"tool", a.Tool(), "detail", "file not in layout for metrics: "+relativePath)
			return 0, fmt.Errorf("sonarqube file not in layout: %s", relativePath)
		}
		values := map[string]string{}
		for _, m := range set.Measures {
			if m.Metric != "" && m.Value != "" {
				values[m.Metric] = m.Value
			}
		}
		metricRows = append(metricRows, lz.SonarqubeMetric{
			RunPK:                  runPK,
			FileID:                 fileID,
			DirectoryID:            directoryID,
			RelativePath:           relativePath,
			NCLOC:                  parseSonarInt(values["ncloc"]),
			Complexity:             parseSonarInt(values["complexity"]),
			CognitiveComplexity:    parseSonarInt(values["cognitive_complexity"]),
			DuplicatedLines:        parseSonarInt(values["duplicated_lines"]),
			DuplicatedLinesDensity: parseSonarFloat(values["duplicated_lines_density"]),
			CodeSmells:             parseSonarInt(values["code_smells"]),
			Bugs:                   parseSonarInt(values["bugs"]),
			Vulnerabilities:        parseSonarInt(values["vulnerabilities"]),
		})
	}
	if err := a.DB.InsertSonarqubeMetrics(metricRows); err != nil {
		return 0, err
	}

	a.logger().Info("persisted sonarqube results",
		"issues", len(issueRows), "file_metrics", len(metricRows), "run_pk", runPK)
	return runPK, nil
}

func (a *Sonarqube) validateQuality(issues []sonarIssue, components map[string]sonarComponent) error {
	var errs []string
	for i, issue := range issues {
		prefix := fmt.Sprintf("issues[%d]", i)
		errs = append(errs, checkRequired(issue.Key, prefix+".key")...)
		errs = append(errs, checkRequired(issue.Rule, prefix+".rule")...)
		if component, ok := components[issue.Component]; ok && component.Path != "" {
			errs = append(errs, a.checkPath(component.Path, prefix)...)
		}
		if issue.Line != 0 && issue.Line < 1 {
			errs = append(errs, prefix+".line must be >= 1")
		}
		errs = append(errs, checkLineRange(issue.TextRange.StartLine, issue.TextRange.EndLine, prefix+".text_range")...)
	}
	return a.failQuality(a.Tool(), errs)
}

func parseSonarInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseSonarFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
