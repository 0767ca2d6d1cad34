package storage

import (
	"fmt"
	"strings"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var semgrepCols = []string{
	"run_pk", "file_id", "directory_id", "relative_path", "rule_id",
	"dd_smell_id", "dd_category", "severity", "line_start", "line_end",
	"column_start", "column_end", "message", "code_snippet",
}

func (db *DB) InsertSemgrepSmells(rows []lz.SemgrepSmell) error {
	return bulkInsert(db, "lz_semgrep_smells", semgrepCols, rows, func(r lz.SemgrepSmell) []any {
		return []any{
			r.RunPK, r.FileID, r.DirectoryID, r.RelativePath, r.RuleID,
			r.SmellID, r.Category, r.Severity, r.LineStart, r.LineEnd,
			r.ColumnStart, r.ColumnEnd, r.Message, r.CodeSnippet,
		}
	})
}

var gitleaksCols = []string{
	"run_pk", "file_id", "directory_id", "relative_path", "rule_id",
	"secret_type", "severity", "line_number", "commit_hash", "commit_author",
	"commit_date", "fingerprint", "in_current_head", "entropy", "description",
}

func (db *DB) InsertGitleaksSecrets(rows []lz.GitleaksSecret) error {
	return bulkInsert(db, "lz_gitleaks_secrets", gitleaksCols, rows, func(r lz.GitleaksSecret) []any {
		return []any{
			r.RunPK, r.FileID, r.DirectoryID, r.RelativePath, r.RuleID,
			r.SecretType, r.Severity, r.LineNumber, r.CommitHash, r.CommitAuthor,
			r.CommitDate, r.Fingerprint, r.InCurrentHead, r.Entropy, r.Description,
		}
	})
}

var roslynCols = []string{
	"run_pk", "file_id", "directory_id", "relative_path", "rule_id",
	"dd_category", "severity", "message", "line_start", "line_end",
	"column_start", "column_end",
}

func (db *DB) InsertRoslynViolations(rows []lz.RoslynViolation) error {
	return bulkInsert(db, "lz_roslyn_violations", roslynCols, rows, func(r lz.RoslynViolation) []any {
		return []any{
			r.RunPK, r.FileID, r.DirectoryID, r.RelativePath, r.RuleID,
			r.Category, r.Severity, r.Message, r.LineStart, r.LineEnd,
			r.ColumnStart, r.ColumnEnd,
		}
	})
}

var sonarIssueCols = []string{
	"run_pk", "file_id", "directory_id", "relative_path", "issue_key",
	"rule_id", "issue_type", "severity", "message", "line_start", "line_end",
	"effort", "status", "tags",
}

var sonarMetricCols = []string{
	"run_pk", "file_id", "directory_id", "relative_path", "ncloc",
	"complexity", "cognitive_complexity", "duplicated_lines",
	"duplicated_lines_density", "code_smells", "bugs", "vulnerabilities",
}

func (db *DB) InsertSonarqubeIssues(rows []lz.SonarqubeIssue) error {
	return bulkInsert(db, "lz_sonarqube_issues", sonarIssueCols, rows, func(r lz.SonarqubeIssue) []any {
		return []any{
			r.RunPK, r.FileID, r.DirectoryID, r.RelativePath, r.IssueKey,
			r.RuleID, r.IssueType, r.Severity, r.Message, r.LineStart, r.LineEnd,
			r.Effort, r.Status, r.Tags,
		}
	})
}

func (db *DB) InsertSonarqubeMetrics(rows []lz.SonarqubeMetric) error {
	return bulkInsert(db, "lz_sonarqube_metrics", sonarMetricCols, rows, func(r lz.SonarqubeMetric) []any {
		return []any{
			r.RunPK, r.FileID, r.DirectoryID, r.RelativePath, r.NCLOC,
			r.Complexity, r.CognitiveComplexity, r.DuplicatedLines,
			r.DuplicatedLinesDensity, r.CodeSmells, r.Bugs, r.Vulnerabilities,
		}
	})
}

// findingSources maps each finding table to the SELECT that projects it onto
// the unified finding shape. Only whitelisted tables appear here; missing
// tables (tool never ingested) are skipped at query time.
var findingSources = []struct {
	table string
	sel   string
}{
	{"lz_semgrep_smells",
		`SELECT 'semgrep' AS tool, rule_id, severity, relative_path, line_start, line_end, message FROM lz_semgrep_smells`},
	{"lz_gitleaks_secrets",
		`SELECT 'gitleaks' AS tool, rule_id, severity, relative_path, line_number AS line_start, line_number AS line_end, description AS message FROM lz_gitleaks_secrets`},
	{"lz_roslyn_violations",
		`SELECT 'roslyn-analyzers' AS tool, rule_id, severity, relative_path, line_start, line_end, message FROM lz_roslyn_violations`},
	{"lz_sonarqube_issues",
		`SELECT 'sonarqube' AS tool, rule_id, severity, relative_path, line_start, line_end, message FROM lz_sonarqube_issues`},
	{"lz_trivy_iac_misconfigs",
		`SELECT 'trivy' AS tool, misconfig_id AS rule_id, severity, relative_path, start_line AS line_start, end_line AS line_end, title AS message FROM lz_trivy_iac_misconfigs`},
	{"lz_trivy_vulnerabilities",
		`SELECT 'trivy' AS tool, v.vulnerability_id AS rule_id, v.severity, COALESCE(t.relative_path, v.target_key) AS relative_path, 0 AS line_start, 0 AS line_end, v.title AS message
		 FROM lz_trivy_vulnerabilities v
		 LEFT JOIN lz_trivy_targets t ON t.run_pk = v.run_pk AND t.target_key = v.target_key`},
}

// ListFindings assembles the unified finding view for one collection run,
// filtered by minimum severity, ordered severity-desc then rule/path for
// reproducible output.
func (db *DB) ListFindings(collectionRunID, minSeverity string) ([]lz.Finding, error) {
	var parts []string
	for _, src := range findingSources {
		exists, err := db.tableExists(src.table)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		alias := src.table
		if strings.Contains(src.sel, "LEFT JOIN") {
			alias = "v"
		}
		parts = append(parts, fmt.Sprintf(
			"%s WHERE %s.run_pk IN (SELECT run_pk FROM lz_tool_runs WHERE collection_run_id = ?)",
			src.sel, alias))
	}
	if len(parts) == 0 {
		return nil, nil
	}

	const rank = `(CASE UPPER(severity)
		WHEN 'CRITICAL' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END)`
	q := `SELECT tool, rule_id, severity, relative_path, line_start, line_end, message
	      FROM (` + strings.Join(parts, " UNION ALL ") + `)
	      WHERE ` + rank + ` >= ?
	      ORDER BY ` + rank + ` DESC, tool, rule_id, relative_path, line_start`

	args := make([]any, 0, len(parts)+1)
	for range parts {
		args = append(args, collectionRunID)
	}
	args = append(args, lz.SeverityRank(minSeverity))

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lz.Finding
	for rows.Next() {
		var f lz.Finding
		var msg, sev, path, rule *string
		if err := rows.Scan(&f.Tool, &rule, &sev, &path, &f.LineStart, &f.LineEnd, &msg); err != nil {
			return nil, err
		}
		if rule != nil {
			f.RuleID = *rule
		}
		if sev != nil {
			f.Severity = *sev
		}
		if path != nil {
			f.RelativePath = *path
		}
		if msg != nil {
			f.Message = *msg
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountFindingsBySeverity rolls up the unified finding view per severity.
func (db *DB) CountFindingsBySeverity(collectionRunID string) (map[string]int, error) {
	findings, err := db.ListFindings(collectionRunID, "")
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, f := range findings {
		out[strings.ToUpper(f.Severity)]++
	}
	return out, nil
}
