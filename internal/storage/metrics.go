package storage

import "github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"

var sccCols = []string{
	"run_pk", "file_id", "directory_id", "relative_path", "filename",
	"extension", "language", "lines_total", "code_lines", "comment_lines",
	"blank_lines", "bytes", "complexity", "uloc", "comment_ratio", "blank_ratio",
	"code_ratio", "complexity_density", "dryness", "bytes_per_loc",
	"is_minified", "is_generated", "is_binary", "classification",
}

func (db *DB) InsertSccFileMetrics(rows []lz.SccFileMetric) error {
	return bulkInsert(db, "lz_scc_file_metrics", sccCols, rows, func(r lz.SccFileMetric) []any {
		return []any{
			r.RunPK, r.FileID, r.DirectoryID, r.RelativePath, r.Filename,
			r.Extension, r.Language, r.LinesTotal, r.CodeLines, r.CommentLines,
			r.BlankLines, r.Bytes, r.Complexity, r.ULOC, r.CommentRatio, r.BlankRatio,
			r.CodeRatio, r.ComplexityDensity, r.Dryness, r.BytesPerLOC,
			r.IsMinified, r.IsGenerated, r.IsBinary, r.Classification,
		}
	})
}

var lizardFileCols = []string{
	"run_pk", "file_id", "relative_path", "language", "nloc",
	"function_count", "total_ccn", "avg_ccn", "max_ccn",
}

var lizardFuncCols = []string{
	"run_pk", "file_id", "function_name", "long_name", "ccn", "nloc",
	"params", "token_count", "line_start", "line_end",
}

func (db *DB) InsertLizardFileMetrics(rows []lz.LizardFileMetric) error {
	return bulkInsert(db, "lz_lizard_file_metrics", lizardFileCols, rows, func(r lz.LizardFileMetric) []any {
		return []any{
			r.RunPK, r.FileID, r.RelativePath, r.Language, r.NLOC,
			r.FunctionCount, r.TotalCCN, r.AvgCCN, r.MaxCCN,
		}
	})
}

func (db *DB) InsertLizardFunctionMetrics(rows []lz.LizardFunctionMetric) error {
	return bulkInsert(db, "lz_lizard_function_metrics", lizardFuncCols, rows, func(r lz.LizardFunctionMetric) []any {
		return []any{
			r.RunPK, r.FileID, r.FunctionName, r.LongName, r.CCN, r.NLOC,
			r.Params, r.TokenCount, r.LineStart, r.LineEnd,
		}
	})
}
