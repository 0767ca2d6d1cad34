package adapters

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var gitSizerDDL = map[string]string{
	"lz_git_sizer_metrics": `
		CREATE TABLE IF NOT EXISTS lz_git_sizer_metrics (
			run_pk BIGINT NOT NULL PRIMARY KEY,
			repo_id TEXT NOT NULL,
			health_grade TEXT NOT NULL,
			duration_ms INTEGER,
			commit_count INTEGER,
			commit_total_size BIGINT,
			max_commit_size BIGINT,
			max_history_depth INTEGER,
			max_parent_count INTEGER,
			tree_count INTEGER,
			tree_total_size BIGINT,
			tree_total_entries INTEGER,
			max_tree_entries INTEGER,
			blob_count INTEGER,
			blob_total_size BIGINT,
			max_blob_size BIGINT,
			tag_count INTEGER,
			max_tag_depth INTEGER,
			reference_count INTEGER,
			branch_count INTEGER,
			max_path_depth INTEGER,
			max_path_length INTEGER,
			expanded_tree_count INTEGER,
			expanded_blob_count INTEGER,
			expanded_blob_size BIGINT
		)`,
	"lz_git_sizer_violations": `
		CREATE TABLE IF NOT EXISTS lz_git_sizer_violations (
			run_pk BIGINT NOT NULL,
			metric TEXT NOT NULL,
			value_display TEXT,
			raw_value BIGINT,
			level INTEGER NOT NULL,
			object_ref TEXT,
			PRIMARY KEY (run_pk, metric)
		)`,
	"lz_git_sizer_lfs_candidates": `
		CREATE TABLE IF NOT EXISTS lz_git_sizer_lfs_candidates (
			run_pk BIGINT NOT NULL,
			file_path TEXT NOT NULL,
			PRIMARY KEY (run_pk, file_path)
		)`,
}

var gitSizerSchema = map[string]map[string]string{
	"lz_git_sizer_metrics": {
		"run_pk":       "BIGINT",
		"repo_id":      "TEXT",
		"health_grade": "TEXT",
	},
	"lz_git_sizer_violations": {
		"run_pk": "BIGINT",
		"metric": "TEXT",
		"level":  "INTEGER",
	},
	"lz_git_sizer_lfs_candidates": {
		"run_pk":    "BIGINT",
		"file_path": "TEXT",
	},
}

type gitSizerViolation struct {
	Metric    string  `json:"metric"`
	Value     string  `json:"value"`
	RawValue  float64 `json:"raw_value"`
	Level     int     `json:"level"`
	ObjectRef string  `json:"object_ref"`
}

type gitSizerData struct {
	HealthGrade   string              `json:"health_grade"`
	DurationMS    int64               `json:"duration_ms"`
	Metrics       map[string]int64    `json:"metrics"`
	Violations    []gitSizerViolation `json:"violations"`
	LfsCandidates []string            `json:"lfs_candidates"`
}

var validHealthGrades = map[string]bool{
	"A": true, "A+": true, "B": true, "B+": true, "C": true,
	"C+": true, "D": true, "D+": true, "F": true,
}

// GitSizer ingests repository-level health metrics. There is no per-file
// data, so this adapter never touches the layout tables.
type GitSizer struct {
	Base
}

func (a *GitSizer) Tool() string { return "git-sizer" }

func (a *GitSizer) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data gitSizerData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), gitSizerDDL, gitSizerSchema); err != nil {
		return 0, err
	}
	runPK, err := a.createToolRun(env.Metadata, collection.CollectionRunID)
	if err != nil {
		return 0, err
	}

	m := data.Metrics
	metric := lz.GitSizerMetric{
		RunPK:             runPK,
		RepoID:            env.Metadata.RepoID,
		HealthGrade:       data.HealthGrade,
		DurationMS:        data.DurationMS,
		CommitCount:       m["commit_count"],
		CommitTotalSize:   m["commit_total_size"],
		MaxCommitSize:     m["max_commit_size"],
		MaxHistoryDepth:   m["max_history_depth"],
		MaxParentCount:    m["max_parent_count"],
		TreeCount:         m["tree_count"],
		TreeTotalSize:     m["tree_total_size"],
		TreeTotalEntries:  m["tree_total_entries"],
		MaxTreeEntries:    m["max_tree_entries"],
		BlobCount:         m["blob_count"],
		BlobTotalSize:     m["blob_total_size"],
		MaxBlobSize:       m["max_blob_size"],
		TagCount:          m["tag_count"],
		MaxTagDepth:       m["max_tag_depth"],
		ReferenceCount:    m["reference_count"],
		BranchCount:       m["branch_count"],
		MaxPathDepth:      m["max_path_depth"],
		MaxPathLength:     m["max_path_length"],
		ExpandedTreeCount: m["expanded_tree_count"],
		ExpandedBlobCount: m["expanded_blob_count"],
		ExpandedBlobSize:  m["expanded_blob_size"],
	}
	if err := a.DB.InsertGitSizerMetrics([]lz.GitSizerMetric{metric}); err != nil {
		return 0, err
	}

	var violations []lz.GitSizerViolation
	for _, v := range data.Violations {
		violations = append(violations, lz.GitSizerViolation{
			RunPK:        runPK,
			Metric:       v.Metric,
			ValueDisplay: v.Value,
			RawValue:     v.RawValue,
			Level:        v.Level,
			ObjectRef:    v.ObjectRef,
		})
	}
	if err := a.DB.InsertGitSizerViolations(violations); err != nil {
		return 0, err
	}

	var candidates []lz.GitSizerLfsCandidate
	for _, path := range data.LfsCandidates {
		candidates = append(candidates, lz.GitSizerLfsCandidate{RunPK: runPK, FilePath: path})
	}
	if err := a.DB.InsertGitSizerLfsCandidates(candidates); err != nil {
		return 0, err
	}

	a.logger().Info("persisted git-sizer results",
		"grade", data.HealthGrade, "violations", len(violations),
		"lfs_candidates", len(candidates), "run_pk", runPK)
	return runPK, nil
}

func (a *GitSizer) validateQuality(data gitSizerData) error {
	var errs []string
	if !validHealthGrades[data.HealthGrade] {
		errs = append(errs, fmt.Sprintf("invalid health_grade: %q", data.HealthGrade))
	}
	for key, value := range data.Metrics {
		if value < 0 {
			errs = append(errs, fmt.Sprintf("negative metric %s: %d", key, value))
		}
	}
	for i, v := range data.Violations {
		if v.Level < 1 || v.Level > 4 {
			errs = append(errs, fmt.Sprintf("violations[%d].level must be 1-4, got %d", i, v.Level))
		}
		errs = append(errs, checkRequired(v.Metric, fmt.Sprintf("violations[%d].metric", i))...)
	}
	return a.failQuality(a.Tool(), errs)
}
