package adapters

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var lizardDDL = map[string]string{
	"lz_lizard_file_metrics": `
		CREATE TABLE IF NOT EXISTS lz_lizard_file_metrics (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			language TEXT,
			nloc INTEGER,
			function_count INTEGER,
			total_ccn INTEGER,
			avg_ccn DOUBLE,
			max_ccn INTEGER,
			PRIMARY KEY (run_pk, file_id)
		)`,
	"lz_lizard_function_metrics": `
		CREATE TABLE IF NOT EXISTS lz_lizard_function_metrics (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			function_name TEXT NOT NULL,
			long_name TEXT,
			ccn INTEGER,
			nloc INTEGER,
			params INTEGER,
			token_count INTEGER,
			line_start INTEGER,
			line_end INTEGER,
			PRIMARY KEY (run_pk, file_id, function_name, line_start)
		)`,
}

var lizardSchema = map[string]map[string]string{
	"lz_lizard_file_metrics": {
		"run_pk":        "BIGINT",
		"file_id":       "TEXT",
		"relative_path": "TEXT",
	},
	"lz_lizard_function_metrics": {
		"run_pk":        "BIGINT",
		"file_id":       "TEXT",
		"function_name": "TEXT",
		"line_start":    "INTEGER",
	},
}

type lizardFunction struct {
	Name       string `json:"name"`
	LongName   string `json:"long_name"`
	CCN        int    `json:"ccn"`
	NLOC       int    `json:"nloc"`
	Params     int    `json:"params"`
	ParamCount int    `json:"parameter_count"`
	TokenCount int    `json:"token_count"`
	LineStart  int    `json:"line_start"`
	StartLine  int    `json:"start_line"`
	LineEnd    int    `json:"line_end"`
	EndLine    int    `json:"end_line"`
}

// start reconciles the two key spellings lizard payloads use.
func (f lizardFunction) start() int {
	if f.LineStart != 0 {
		return f.LineStart
	}
	return f.StartLine
}

func (f lizardFunction) end() int {
	if f.LineEnd != 0 {
		return f.LineEnd
	}
	return f.EndLine
}

func (f lizardFunction) paramCount() int {
	if f.Params != 0 {
		return f.Params
	}
	return f.ParamCount
}

type lizardFileEntry struct {
	Path          string           `json:"path"`
	Language      string           `json:"language"`
	NLOC          int              `json:"nloc"`
	FunctionCount int              `json:"function_count"`
	TotalCCN      int              `json:"total_ccn"`
	AvgCCN        float64          `json:"avg_ccn"`
	MaxCCN        int              `json:"max_ccn"`
	Functions     []lizardFunction `json:"functions"`
}

type lizardData struct {
	Files []lizardFileEntry `json:"files"`
}

// Lizard ingests per-file and per-function complexity metrics.
type Lizard struct {
	Base
}

func (a *Lizard) Tool() string { return "lizard" }

func (a *Lizard) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data lizardData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data.Files); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), lizardDDL, lizardSchema); err != nil {
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

	type funcKey struct {
		fileID string
		name   string
		line   int
	}
	seenFiles := map[string]bool{}
	seenFuncs := map[funcKey]bool{}
	var fileRows []lz.LizardFileMetric
	var funcRows []lz.LizardFunctionMetric

	for _, entry := range data.Files {
		relativePath := a.normalize(entry.Path)
		fileID, _, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			return 0, fmt.Errorf("lizard: resolve %s: %w", relativePath, err)
		}
		if seenFiles[fileID] {
			a.logger().Warn("skipping duplicate file", "tool", a.Tool(), "path", relativePath)
			continue
		}
		seenFiles[fileID] = true

		fileRows = append(fileRows, lz.LizardFileMetric{
			RunPK:         runPK,
			FileID:        fileID,
			RelativePath:  relativePath,
			Language:      entry.Language,
			NLOC:          entry.NLOC,
			FunctionCount: entry.FunctionCount,
			TotalCCN:      entry.TotalCCN,
			AvgCCN:        entry.AvgCCN,
			MaxCCN:        entry.MaxCCN,
		})

		for _, fn := range entry.Functions {
			lineStart := fn.start()
			// Lizard emits pseudo-functions like *global* for file scope with
			// line numbers below 1; they are artifacts, not functions.
			if lineStart < 1 {
				a.logger().Warn("skipping pseudo-function",
					"tool", a.Tool(), "function", fn.Name, "line_start", lineStart)
				continue
			}
			key := funcKey{fileID, fn.Name, lineStart}
			if seenFuncs[key] {
				a.logger().Warn("skipping duplicate function",
					"tool", a.Tool(), "function", fn.Name, "path", relativePath, "line", lineStart)
				continue
			}
			seenFuncs[key] = true
			funcRows = append(funcRows, lz.LizardFunctionMetric{
				RunPK:        runPK,
				FileID:       fileID,
				FunctionName: fn.Name,
				LongName:     fn.LongName,
				CCN:          fn.CCN,
				NLOC:         fn.NLOC,
				Params:       fn.paramCount(),
				TokenCount:   fn.TokenCount,
				LineStart:    lineStart,
				LineEnd:      fn.end(),
			})
		}
	}
	if err := a.DB.InsertLizardFileMetrics(fileRows); err != nil {
		return 0, err
	}
	if err := a.DB.InsertLizardFunctionMetrics(funcRows); err != nil {
		return 0, err
	}
	a.logger().Info("persisted lizard metrics",
		"files", len(fileRows), "functions", len(funcRows), "run_pk", runPK)
	return runPK, nil
}

func (a *Lizard) validateQuality(files []lizardFileEntry) error {
	var errs []string
	for i, entry := range files {
		errs = append(errs, a.checkPath(entry.Path, fmt.Sprintf("lizard file[%d]", i))...)
		errs = append(errs, checkRequired(entry.Language, fmt.Sprintf("file[%d].language", i))...)
		errs = append(errs, checkNonNegative(entry.NLOC, fmt.Sprintf("file[%d].nloc", i))...)
		errs = append(errs, checkNonNegative(entry.FunctionCount, fmt.Sprintf("file[%d].function_count", i))...)
		errs = append(errs, checkNonNegative(entry.TotalCCN, fmt.Sprintf("file[%d].total_ccn", i))...)
		errs = append(errs, checkNonNegative(entry.MaxCCN, fmt.Sprintf("file[%d].max_ccn", i))...)
		if entry.AvgCCN > float64(entry.MaxCCN) {
			errs = append(errs, fmt.Sprintf("file[%d] avg_ccn exceeds max_ccn", i))
		}
		for j, fn := range entry.Functions {
			errs = append(errs, checkRequired(fn.Name, fmt.Sprintf("file[%d].functions[%d].name", i, j))...)
			errs = append(errs, checkNonNegative(fn.CCN, fmt.Sprintf("file[%d].functions[%d].ccn", i, j))...)
			errs = append(errs, checkNonNegative(fn.NLOC, fmt.Sprintf("file[%d].functions[%d].nloc", i, j))...)
			if start, end := fn.start(), fn.end(); start >= 1 && end >= 1 && start > end {
				errs = append(errs, fmt.Sprintf("file[%d].functions[%d] start_line > end_line", i, j))
			}
		}
	}
	return a.failQuality(a.Tool(), errs)
}
