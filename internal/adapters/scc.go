package adapters

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var sccDDL = map[string]string{
	"lz_scc_file_metrics": `
		CREATE TABLE IF NOT EXISTS lz_scc_file_metrics (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			directory_id TEXT,
			relative_path TEXT NOT NULL,
			filename TEXT,
			extension TEXT,
			language TEXT,
			lines_total INTEGER,
			code_lines INTEGER,
			comment_lines INTEGER,
			blank_lines INTEGER,
			bytes BIGINT,
			complexity INTEGER,
			uloc INTEGER,
			comment_ratio DOUBLE,
			blank_ratio DOUBLE,
			code_ratio DOUBLE,
			complexity_density DOUBLE,
			dryness DOUBLE,
			bytes_per_loc DOUBLE,
			is_minified BOOLEAN,
			is_generated BOOLEAN,
			is_binary BOOLEAN,
			classification TEXT,
			PRIMARY KEY (run_pk, file_id)
		)`,
}

var sccSchema = map[string]map[string]string{
	"lz_scc_file_metrics": {
		"run_pk":        "BIGINT",
		"file_id":       "TEXT",
		"relative_path": "TEXT",
		"code_lines":    "INTEGER",
		"complexity":    "INTEGER",
	},
}

// sccFileEntry is one file record from the scc --by-file transform.
type sccFileEntry struct {
	Path              string  `json:"path"`
	Filename          string  `json:"filename"`
	Language          string  `json:"language"`
	Lines             int     `json:"lines"`
	Code              int     `json:"code"`
	Comment           int     `json:"comment"`
	Blank             int     `json:"blank"`
	Bytes             int64   `json:"bytes"`
	Complexity        int     `json:"complexity"`
	ULOC              int     `json:"uloc"`
	CommentRatio      float64 `json:"comment_ratio"`
	ComplexityDensity float64 `json:"complexity_density"`
	Dryness           float64 `json:"dryness"`
	IsMinified        bool    `json:"is_minified"`
	IsGenerated       bool    `json:"is_generated"`
	IsBinary          bool    `json:"is_binary"`
}

type sccData struct {
	Files []sccFileEntry `json:"files"`
}

// Scc ingests per-file size and complexity metrics.
type Scc struct {
	Base
}

func (a *Scc) Tool() string { return "scc" }

func (a *Scc) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data sccData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data.Files); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), sccDDL, sccSchema); err != nil {
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

	seen := map[string]bool{}
	var rows []lz.SccFileMetric
	for _, entry := range data.Files {
		relativePath := a.normalize(entry.Path)
		fileID, directoryID, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			return 0, fmt.Errorf("scc: resolve %s: %w", relativePath, err)
		}
		if seen[fileID] {
			a.logger().Warn("skipping duplicate file", "tool", a.Tool(), "path", relativePath)
			continue
		}
		seen[fileID] = true

		m := lz.SccFileMetric{
			RunPK:             runPK,
			FileID:            fileID,
			DirectoryID:       directoryID,
			RelativePath:      relativePath,
			Filename:          entry.Filename,
			Extension:         extOf(entry.Filename),
			Language:          entry.Language,
			LinesTotal:        entry.Lines,
			CodeLines:         entry.Code,
			CommentLines:      entry.Comment,
			BlankLines:        entry.Blank,
			Bytes:             entry.Bytes,
			Complexity:        entry.Complexity,
			ULOC:              entry.ULOC,
			CommentRatio:      entry.CommentRatio,
			ComplexityDensity: entry.ComplexityDensity,
			Dryness:           entry.Dryness,
			IsMinified:        entry.IsMinified,
			IsGenerated:       entry.IsGenerated,
			IsBinary:          entry.IsBinary,
			Classification:    classifyScc(entry),
		}
		if entry.Lines > 0 {
			if m.CommentRatio == 0 {
				m.CommentRatio = ratio(entry.Comment, entry.Lines)
			}
			m.BlankRatio = ratio(entry.Blank, entry.Lines)
			m.CodeRatio = ratio(entry.Code, entry.Lines)
		}
		if entry.Code > 0 {
			if m.ComplexityDensity == 0 {
				m.ComplexityDensity = ratio(entry.Complexity, entry.Code)
			}
			if m.Dryness == 0 && entry.ULOC > 0 {
				m.Dryness = ratio(entry.ULOC, entry.Code)
			}
			m.BytesPerLOC = float64(entry.Bytes) / float64(entry.Code)
		}
		rows = append(rows, m)
	}
	if err := a.DB.InsertSccFileMetrics(rows); err != nil {
		return 0, err
	}
	a.logger().Info("persisted scc metrics", "files", len(rows), "run_pk", runPK)
	return runPK, nil
}

func (a *Scc) validateQuality(files []sccFileEntry) error {
	var errs []string
	for i, entry := range files {
		errs = append(errs, a.checkPath(entry.Path, fmt.Sprintf("scc file[%d]", i))...)
		errs = append(errs, checkNonNegative(entry.Lines, fmt.Sprintf("file[%d].lines", i))...)
		errs = append(errs, checkNonNegative(entry.Code, fmt.Sprintf("file[%d].code", i))...)
		errs = append(errs, checkNonNegative(entry.Comment, fmt.Sprintf("file[%d].comment", i))...)
		errs = append(errs, checkNonNegative(entry.Blank, fmt.Sprintf("file[%d].blank", i))...)
		errs = append(errs, checkNonNegative(entry.Bytes, fmt.Sprintf("file[%d].bytes", i))...)
		errs = append(errs, checkNonNegative(entry.Complexity, fmt.Sprintf("file[%d].complexity", i))...)
		if entry.Code > entry.Lines {
			errs = append(errs, fmt.Sprintf("file[%d] code exceeds total lines", i))
		}
	}
	return a.failQuality(a.Tool(), errs)
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func classifyScc(e sccFileEntry) string {
	switch {
	case e.IsBinary:
		return "binary"
	case e.IsGenerated:
		return "generated"
	case e.IsMinified:
		return "minified"
	default:
		return "source"
	}
}

func extOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		switch filename[i] {
		case '.':
			return filename[i+1:]
		case '/':
			return ""
		}
	}
	return ""
}
