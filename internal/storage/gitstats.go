package storage

import "github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"

var gitSizerMetricCols = []string{
	"run_pk", "repo_id", "health_grade", "duration_ms",
	"commit_count", "commit_total_size", "max_commit_size",
	"max_history_depth", "max_parent_count",
	"tree_count", "tree_total_size", "tree_total_entries", "max_tree_entries",
	"blob_count", "blob_total_size", "max_blob_size",
	"tag_count", "max_tag_depth",
	"reference_count", "branch_count",
	"max_path_depth", "max_path_length",
	"expanded_tree_count", "expanded_blob_count", "expanded_blob_size",
}

var gitSizerViolationCols = []string{
	"run_pk", "metric", "value_display", "raw_value", "level", "object_ref",
}

func (db *DB) InsertGitSizerMetrics(rows []lz.GitSizerMetric) error {
	return bulkInsert(db, "lz_git_sizer_metrics", gitSizerMetricCols, rows, func(m lz.GitSizerMetric) []any {
		return []any{
			m.RunPK, m.RepoID, m.HealthGrade, m.DurationMS,
			m.CommitCount, m.CommitTotalSize, m.MaxCommitSize,
			m.MaxHistoryDepth, m.MaxParentCount,
			m.TreeCount, m.TreeTotalSize, m.TreeTotalEntries, m.MaxTreeEntries,
			m.BlobCount, m.BlobTotalSize, m.MaxBlobSize,
			m.TagCount, m.MaxTagDepth,
			m.ReferenceCount, m.BranchCount,
			m.MaxPathDepth, m.MaxPathLength,
			m.ExpandedTreeCount, m.ExpandedBlobCount, m.ExpandedBlobSize,
		}
	})
}

func (db *DB) InsertGitSizerViolations(rows []lz.GitSizerViolation) error {
	return bulkInsert(db, "lz_git_sizer_violations", gitSizerViolationCols, rows, func(r lz.GitSizerViolation) []any {
		return []any{r.RunPK, r.Metric, r.ValueDisplay, r.RawValue, r.Level, r.ObjectRef}
	})
}

func (db *DB) InsertGitSizerLfsCandidates(rows []lz.GitSizerLfsCandidate) error {
	return bulkInsert(db, "lz_git_sizer_lfs_candidates", []string{"run_pk", "file_path"}, rows,
		func(r lz.GitSizerLfsCandidate) []any {
			return []any{r.RunPK, r.FilePath}
		})
}

var gitFameAuthorCols = []string{
	"run_pk", "author_name", "author_email", "surviving_loc",
	"ownership_pct", "insertions_total", "deletions_total",
	"commit_count", "files_touched",
}

var gitFameSummaryCols = []string{
	"run_pk", "repo_id", "author_count", "total_loc",
	"hhi_index", "bus_factor", "top_author_pct", "top_two_pct",
}

func (db *DB) InsertGitFameAuthors(rows []lz.GitFameAuthor) error {
	return bulkInsert(db, "lz_git_fame_authors", gitFameAuthorCols, rows, func(r lz.GitFameAuthor) []any {
		return []any{
			r.RunPK, r.AuthorName, r.AuthorEmail, r.SurvivingLOC,
			r.OwnershipPct, r.InsertionsTotal, r.DeletionsTotal,
			r.CommitCount, r.FilesTouched,
		}
	})
}

func (db *DB) InsertGitFameSummary(rows []lz.GitFameSummary) error {
	return bulkInsert(db, "lz_git_fame_summary", gitFameSummaryCols, rows, func(r lz.GitFameSummary) []any {
		return []any{
			r.RunPK, r.RepoID, r.AuthorCount, r.TotalLOC,
			r.HHIIndex, r.BusFactor, r.TopAuthorPct, r.TopTwoPct,
		}
	})
}
