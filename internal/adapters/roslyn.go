package adapters

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var roslynDDL = map[string]string{
	"lz_roslyn_violations": `
		CREATE TABLE IF NOT EXISTS lz_roslyn_violations (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			directory_id TEXT,
			relative_path TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			dd_category TEXT,
			severity TEXT,
			message TEXT,
			line_start INTEGER,
			line_end INTEGER,
			column_start INTEGER,
			column_end INTEGER,
			PRIMARY KEY (run_pk, file_id, rule_id, line_start, column_start)
		)`,
}

var roslynSchema = map[string]map[string]string{
	"lz_roslyn_violations": {
		"run_pk":        "BIGINT",
		"file_id":       "TEXT",
		"relative_path": "TEXT",
		"rule_id":       "TEXT",
		"line_start":    "INTEGER",
	},
}

type roslynViolation struct {
	RuleID      string `json:"rule_id"`
	Category    string `json:"dd_category"`
	Severity    string `json:"dd_severity"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	ColumnStart int    `json:"column_start"`
	ColumnEnd   int    `json:"column_end"`
	Message     string `json:"message"`
}

type roslynFileEntry struct {
	Path       string            `json:"relative_path"`
	Violations []roslynViolation `json:"violations"`
}

type roslynData struct {
	Files []roslynFileEntry `json:"files"`
}

// Roslyn ingests .NET analyzer violations.
type Roslyn struct {
	Base
}

func (a *Roslyn) Tool() string { return "roslyn-analyzers" }

func (a *Roslyn) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data roslynData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data.Files); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), roslynDDL, roslynSchema); err != nil {
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

	type violationKey struct {
		fileID string
		ruleID string
		line   int
		column int
	}
	seen := map[violationKey]bool{}
	var rows []lz.RoslynViolation
	for _, entry := range data.Files {
		relativePath := a.normalize(entry.Path)
		fileID, directoryID, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			return 0, fmt.Errorf("roslyn-analyzers: resolve %s: %w", relativePath, err)
		}
		for _, v := range entry.Violations {
			key := violationKey{fileID, v.RuleID, v.LineStart, v.ColumnStart}
			if seen[key] {
				a.logger().Warn("skipping duplicate violation",
					"tool", a.Tool(), "rule", v.RuleID, "path", relativePath, "line", v.LineStart)
				continue
			}
			seen[key] = true
			rows = append(rows, lz.RoslynViolation{
				RunPK:        runPK,
				FileID:       fileID,
				DirectoryID:  directoryID,
				RelativePath: relativePath,
				RuleID:       v.RuleID,
				Category:     v.Category,
				Severity:     v.Severity,
				Message:      v.Message,
				LineStart:    v.LineStart,
				LineEnd:      v.LineEnd,
				ColumnStart:  v.ColumnStart,
				ColumnEnd:    v.ColumnEnd,
			})
		}
	}
	if err := a.DB.InsertRoslynViolations(rows); err != nil {
		return 0, err
	}
	a.logger().Info("persisted roslyn violations", "violations", len(rows), "run_pk", runPK)
	return runPK, nil
}

func (a *Roslyn) validateQuality(files []roslynFileEntry) error {
	var errs []string
	for i, entry := range files {
		errs = append(errs, a.checkPath(entry.Path, fmt.Sprintf("roslyn file[%d]", i))...)
		for j, v := range entry.Violations {
			prefix := fmt.Sprintf("file[%d].violations[%d]", i, j)
			errs = append(errs, checkRequired(v.RuleID, prefix+".rule_id")...)
			errs = append(errs, checkLineRange(v.LineStart, v.LineEnd, prefix)...)
		}
	}
	return a.failQuality(a.Tool(), errs)
}
