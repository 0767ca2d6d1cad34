package insights

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

// Summary is the collection-level overview served by reports and the API.
type Summary struct {
	CollectionRun  lz.CollectionRun `json:"collection_run"`
	ToolRuns       []lz.ToolRun     `json:"tool_runs"`
	ToolCount      int              `json:"tool_count"`
	FileCount      int              `json:"file_count"`
	TotalFindings  int              `json:"total_findings"`
	BySeverity     map[string]int   `json:"findings_by_severity"`
	TotalCodeLines int64            `json:"total_code_lines"`
}

// BuildSummary assembles the overview for one collection run.
func BuildSummary(db *storage.DB, collectionRunID string) (*Summary, error) {
	run, err := db.GetCollectionRun(collectionRunID)
	if err != nil {
		return nil, fmt.Errorf("collection run %s: %w", collectionRunID, err)
	}
	toolRuns, err := db.ListToolRuns(collectionRunID)
	if err != nil {
		return nil, fmt.Errorf("tool runs: %w", err)
	}
	bySeverity, err := db.CountFindingsBySeverity(collectionRunID)
	if err != nil {
		return nil, fmt.Errorf("findings by severity: %w", err)
	}

	s := &Summary{
		CollectionRun: run,
		ToolRuns:      toolRuns,
		ToolCount:     len(toolRuns),
		BySeverity:    bySeverity,
	}
	for _, n := range bySeverity {
		s.TotalFindings += n
	}

	// Layout and scc rows are optional; summaries degrade rather than fail.
	if pk, err := db.GetRunPKAny(collectionRunID, "layout-scanner", "layout"); err == nil {
		rows, err := db.SelectMaps(
			"SELECT COUNT(*) AS files FROM lz_layout_files WHERE run_pk = ?", pk)
		if err == nil && len(rows) == 1 {
			s.FileCount = toInt(rows[0]["files"])
		}
	}
	if pk, err := db.GetRunPK(collectionRunID, "scc"); err == nil {
		rows, err := db.SelectMaps(
			"SELECT COALESCE(SUM(code_lines), 0) AS code FROM lz_scc_file_metrics WHERE run_pk = ?", pk)
		if err == nil && len(rows) == 1 {
			s.TotalCodeLines = toInt64(rows[0]["code"])
		}
	}
	return s, nil
}

func toInt(v any) int { return int(toInt64(v)) }

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
