package storage

import "github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"

var trivyTargetCols = []string{
	"run_pk", "target_key", "file_id", "directory_id", "relative_path",
	"target_type", "vulnerability_count", "critical_count",
	"high_count", "medium_count", "low_count",
}

var trivyVulnCols = []string{
	"run_pk", "target_key", "vulnerability_id", "package_name",
	"installed_version", "fixed_version", "severity", "cvss_score",
	"title", "published_date", "age_days", "fix_available",
}

var trivyIacCols = []string{
	"run_pk", "file_id", "directory_id", "relative_path", "misconfig_id",
	"severity", "title", "description", "resolution", "target_type",
	"start_line", "end_line",
}

func (db *DB) InsertTrivyTargets(rows []lz.TrivyTarget) error {
	return bulkInsert(db, "lz_trivy_targets", trivyTargetCols, rows, func(r lz.TrivyTarget) []any {
		return []any{
			r.RunPK, r.TargetKey, r.FileID, r.DirectoryID, r.RelativePath,
			r.TargetType, r.VulnerabilityCount, r.CriticalCount,
			r.HighCount, r.MediumCount, r.LowCount,
		}
	})
}

func (db *DB) InsertTrivyVulnerabilities(rows []lz.TrivyVulnerability) error {
	return bulkInsert(db, "lz_trivy_vulnerabilities", trivyVulnCols, rows, func(r lz.TrivyVulnerability) []any {
		return []any{
			r.RunPK, r.TargetKey, r.VulnerabilityID, r.PackageName,
			r.InstalledVersion, r.FixedVersion, r.Severity, r.CVSSScore,
			r.Title, r.PublishedDate, r.AgeDays, r.FixAvailable,
		}
	})
}

func (db *DB) InsertTrivyIacMisconfigs(rows []lz.TrivyIacMisconfig) error {
	return bulkInsert(db, "lz_trivy_iac_misconfigs", trivyIacCols, rows, func(r lz.TrivyIacMisconfig) []any {
		return []any{
			r.RunPK, r.FileID, r.DirectoryID, r.RelativePath, r.MisconfigID,
			r.Severity, r.Title, r.Description, r.Resolution, r.TargetType,
			r.StartLine, r.EndLine,
		}
	})
}
