package adapters

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var gitFameDDL = map[string]string{
	"lz_git_fame_authors": `
		CREATE TABLE IF NOT EXISTS lz_git_fame_authors (
			run_pk BIGINT NOT NULL,
			author_name TEXT NOT NULL,
			author_email TEXT,
			surviving_loc BIGINT,
			ownership_pct DOUBLE,
			insertions_total BIGINT,
			deletions_total BIGINT,
			commit_count INTEGER,
			files_touched INTEGER,
			PRIMARY KEY (run_pk, author_name)
		)`,
	"lz_git_fame_summary": `
		CREATE TABLE IF NOT EXISTS lz_git_fame_summary (
			run_pk BIGINT NOT NULL PRIMARY KEY,
			repo_id TEXT NOT NULL,
			author_count INTEGER,
			total_loc BIGINT,
			hhi_index DOUBLE,
			bus_factor INTEGER,
			top_author_pct DOUBLE,
			top_two_pct DOUBLE
		)`,
}

var gitFameSchema = map[string]map[string]string{
	"lz_git_fame_authors": {
		"run_pk":      "BIGINT",
		"author_name": "TEXT",
	},
	"lz_git_fame_summary": {
		"run_pk":  "BIGINT",
		"repo_id": "TEXT",
	},
}

type gitFameAuthor struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	SurvivingLOC    int64   `json:"surviving_loc"`
	OwnershipPct    float64 `json:"ownership_pct"`
	InsertionsTotal int64   `json:"insertions_total"`
	DeletionsTotal  int64   `json:"deletions_total"`
	CommitCount     int64   `json:"commit_count"`
	FilesTouched    int64   `json:"files_touched"`
}

type gitFameData struct {
	Authors []gitFameAuthor `json:"authors"`
	Summary struct {
		AuthorCount  int     `json:"author_count"`
		TotalLOC     int64   `json:"total_loc"`
		HHIIndex     float64 `json:"hhi_index"`
		BusFactor    int     `json:"bus_factor"`
		TopAuthorPct float64 `json:"top_author_pct"`
		TopTwoPct    float64 `json:"top_two_pct"`
	} `json:"summary"`
}

// GitFame ingests authorship attribution metrics. Like git-sizer this is
// repository-level data with no layout join.
type GitFame struct {
	Base
}

func (a *GitFame) Tool() string { return "git-fame" }

func (a *GitFame) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data gitFameData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), gitFameDDL, gitFameSchema); err != nil {
		return 0, err
	}
	runPK, err := a.createToolRun(env.Metadata, collection.CollectionRunID)
	if err != nil {
		return 0, err
	}

	seen := map[string]bool{}
	var authors []lz.GitFameAuthor
	for _, author := range data.Authors {
		if seen[author.Name] {
			a.logger().Warn("skipping duplicate author", "tool", a.Tool(), "author", author.Name)
			continue
		}
		seen[author.Name] = true
		authors = append(authors, lz.GitFameAuthor{
			RunPK:           runPK,
			AuthorName:      author.Name,
			AuthorEmail:     author.Email,
			SurvivingLOC:    author.SurvivingLOC,
			OwnershipPct:    author.OwnershipPct,
			InsertionsTotal: author.InsertionsTotal,
			DeletionsTotal:  author.DeletionsTotal,
			CommitCount:     author.CommitCount,
			FilesTouched:    author.FilesTouched,
		})
	}
	if err := a.DB.InsertGitFameAuthors(authors); err != nil {
		return 0, err
	}

	summary := lz.GitFameSummary{
		RunPK:        runPK,
		RepoID:       env.Metadata.RepoID,
		AuthorCount:  data.Summary.AuthorCount,
		TotalLOC:     data.Summary.TotalLOC,
		HHIIndex:     data.Summary.HHIIndex,
		BusFactor:    data.Summary.BusFactor,
		TopAuthorPct: data.Summary.TopAuthorPct,
		TopTwoPct:    data.Summary.TopTwoPct,
	}
	if err := a.DB.InsertGitFameSummary([]lz.GitFameSummary{summary}); err != nil {
		return 0, err
	}

	a.logger().Info("persisted git-fame results",
		"authors", len(authors), "bus_factor", summary.BusFactor, "run_pk", runPK)
	return runPK, nil
}

func (a *GitFame) validateQuality(data gitFameData) error {
	var errs []string
	for i, author := range data.Authors {
		prefix := fmt.Sprintf("authors[%d]", i)
		errs = append(errs, checkRequired(author.Name, prefix+".name")...)
		errs = append(errs, checkNonNegative(author.SurvivingLOC, prefix+".surviving_loc")...)
		errs = append(errs, checkNonNegative(author.CommitCount, prefix+".commit_count")...)
		if author.OwnershipPct < 0 || author.OwnershipPct > 100 {
			errs = append(errs, prefix+".ownership_pct must be between 0 and 100")
		}
	}
	errs = append(errs, checkNonNegative(data.Summary.TotalLOC, "summary.total_loc")...)
	if data.Summary.BusFactor < 0 {
		errs = append(errs, "summary.bus_factor must be non-negative")
	}
	return a.failQuality(a.Tool(), errs)
}
