package adapters

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var semgrepDDL = map[string]string{
	"lz_semgrep_smells": `
		CREATE TABLE IF NOT EXISTS lz_semgrep_smells (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			directory_id TEXT,
			relative_path TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			dd_smell_id TEXT,
			dd_category TEXT,
			severity TEXT,
			line_start INTEGER,
			line_end INTEGER,
			column_start INTEGER,
			column_end INTEGER,
			message TEXT,
			code_snippet TEXT,
			PRIMARY KEY (run_pk, file_id, rule_id, line_start, column_start)
		)`,
}

var semgrepSchema = map[string]map[string]string{
	"lz_semgrep_smells": {
		"run_pk":        "BIGINT",
		"file_id":       "TEXT",
		"relative_path": "TEXT",
		"rule_id":       "TEXT",
		"line_start":    "INTEGER",
	},
}

type semgrepSmell struct {
	RuleID      string `json:"rule_id"`
	SmellID     string `json:"dd_smell_id"`
	Category    string `json:"dd_category"`
	Severity    string `json:"severity"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	ColumnStart int    `json:"column_start"`
	ColumnEnd   int    `json:"column_end"`
	Message     string `json:"message"`
	CodeSnippet string `json:"code_snippet"`
}

type semgrepFileEntry struct {
	Path   string         `json:"path"`
	Smells []semgrepSmell `json:"smells"`
}

type semgrepData struct {
	Files []semgrepFileEntry `json:"files"`
}

// Semgrep ingests code-smell detections.
type Semgrep struct {
	Base
}

func (a *Semgrep) Tool() string { return "semgrep" }

func (a *Semgrep) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data semgrepData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data.Files); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), semgrepDDL, semgrepSchema); err != nil {
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

	type smellKey struct {
		fileID string
		ruleID string
		line   int
		column int
	}
	seen := map[smellKey]bool{}
	var rows []lz.SemgrepSmell
	for _, entry := range data.Files {
		relativePath := a.normalize(entry.Path)
		fileID, directoryID, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			return 0, fmt.Errorf("semgrep: resolve %s: %w", relativePath, err)
		}
		for _, s := range entry.Smells {
			key := smellKey{fileID, s.RuleID, s.LineStart, s.ColumnStart}
			if seen[key] {
				a.logger().Warn("skipping duplicate smell",
					"tool", a.Tool(), "rule", s.RuleID, "path", relativePath, "line", s.LineStart)
				continue
			}
			seen[key] = true
			rows = append(rows, lz.SemgrepSmell{
				RunPK:        runPK,
				FileID:       fileID,
				DirectoryID:  directoryID,
				RelativePath: relativePath,
				RuleID:       s.RuleID,
				SmellID:      s.SmellID,
				Category:     s.Category,
				Severity:     s.Severity,
				LineStart:    s.LineStart,
				LineEnd:      s.LineEnd,
				ColumnStart:  s.ColumnStart,
				ColumnEnd:    s.ColumnEnd,
				Message:      s.Message,
				CodeSnippet:  s.CodeSnippet,
			})
		}
	}
	if err := a.DB.InsertSemgrepSmells(rows); err != nil {
		return 0, err
	}
	a.logger().Info("persisted semgrep smells", "smells", len(rows), "run_pk", runPK)
	return runPK, nil
}

func (a *Semgrep) validateQuality(files []semgrepFileEntry) error {
	var errs []string
	for i, entry := range files {
		errs = append(errs, a.checkPath(entry.Path, fmt.Sprintf("semgrep file[%d]", i))...)
		for j, s := range entry.Smells {
			prefix := fmt.Sprintf("file[%d].smells[%d]", i, j)
			errs = append(errs, checkRequired(s.RuleID, prefix+".rule_id")...)
			errs = append(errs, checkLineRange(s.LineStart, s.LineEnd, prefix)...)
		}
	}
	return a.failQuality(a.Tool(), errs)
}
