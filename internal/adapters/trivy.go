package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var trivyDDL = map[string]string{
	"lz_trivy_targets": `
		CREATE TABLE IF NOT EXISTS lz_trivy_targets (
			run_pk BIGINT NOT NULL,
			target_key TEXT NOT NULL,
			file_id TEXT,
			directory_id TEXT,
			relative_path TEXT NOT NULL,
			target_type TEXT,
			vulnerability_count INTEGER DEFAULT 0,
			critical_count INTEGER DEFAULT 0,
			high_count INTEGER DEFAULT 0,
			medium_count INTEGER DEFAULT 0,
			low_count INTEGER DEFAULT 0,
			PRIMARY KEY (run_pk, target_key)
		)`,
	"lz_trivy_vulnerabilities": `
		CREATE TABLE IF NOT EXISTS lz_trivy_vulnerabilities (
			run_pk BIGINT NOT NULL,
			target_key TEXT NOT NULL,
			vulnerability_id TEXT NOT NULL,
			package_name TEXT NOT NULL,
			installed_version TEXT,
			fixed_version TEXT,
			severity TEXT,
			cvss_score DOUBLE,
			title TEXT,
			published_date TEXT,
			age_days INTEGER,
			fix_available BOOLEAN,
			PRIMARY KEY (run_pk, target_key, vulnerability_id, package_name)
		)`,
	"lz_trivy_iac_misconfigs": `
		CREATE TABLE IF NOT EXISTS lz_trivy_iac_misconfigs (
			run_pk BIGINT NOT NULL,
			file_id TEXT,
			directory_id TEXT,
			relative_path TEXT NOT NULL,
			misconfig_id TEXT NOT NULL,
			severity TEXT,
			title TEXT,
			description TEXT,
			resolution TEXT,
			target_type TEXT,
			start_line INTEGER,
			end_line INTEGER,
			PRIMARY KEY (run_pk, relative_path, misconfig_id, start_line)
		)`,
}

var trivySchema = map[string]map[string]string{
	"lz_trivy_targets": {
		"run_pk":        "BIGINT",
		"target_key":    "TEXT",
		"relative_path": "TEXT",
	},
	"lz_trivy_vulnerabilities": {
		"run_pk":           "BIGINT",
		"target_key":       "TEXT",
		"vulnerability_id": "TEXT",
		"package_name":     "TEXT",
	},
	"lz_trivy_iac_misconfigs": {
		"run_pk":        "BIGINT",
		"relative_path": "TEXT",
		"misconfig_id":  "TEXT",
		"start_line":    "INTEGER",
	},
}

type trivyVulnerability struct {
	ID               string  `json:"id"`
	Package          string  `json:"package"`
	InstalledVersion string  `json:"installed_version"`
	FixedVersion     string  `json:"fixed_version"`
	Severity         string  `json:"severity"`
	CVSSScore        float64 `json:"cvss_score"`
	Title            string  `json:"title"`
	PublishedDate    string  `json:"published_date"`
	AgeDays          int     `json:"age_days"`
	FixAvailable     bool    `json:"fix_available"`
	Target           string  `json:"target"`
	TargetType       string  `json:"target_type"`
}

type trivyTarget struct {
	Path               string `json:"path"`
	Type               string `json:"type"`
	VulnerabilityCount int    `json:"vulnerability_count"`
	CriticalCount      int    `json:"critical_count"`
	HighCount          int    `json:"high_count"`
	MediumCount        int    `json:"medium_count"`
	LowCount           int    `json:"low_count"`
}

type trivyMisconfig struct {
	ID          string `json:"id"`
	Target      string `json:"target"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Resolution  string `json:"resolution"`
	TargetType  string `json:"target_type"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
}

type trivyData struct {
	ToolVersion        string               `json:"tool_version"`
	Vulnerabilities    []trivyVulnerability `json:"vulnerabilities"`
	Targets            []trivyTarget        `json:"targets"`
	IacMisconfigHolder struct {
		Misconfigurations []trivyMisconfig `json:"misconfigurations"`
	} `json:"iac_misconfigurations"`
}

// Trivy ingests dependency vulnerabilities, scan targets and IaC
// misconfigurations. Trivy payloads predate the strict envelope, so missing
// metadata fields fall back to sensible values instead of failing.
type Trivy struct {
	Base
}

func (a *Trivy) Tool() string { return "trivy" }

// RelaxedMetadata reports that this adapter tolerates incomplete metadata.
func (a *Trivy) RelaxedMetadata() bool { return true }

func (a *Trivy) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data trivyData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), trivyDDL, trivySchema); err != nil {
		return 0, err
	}
	layoutPK, err := a.layoutRunPK(collection.CollectionRunID)
	if err != nil {
		return 0, err
	}

	meta := env.Metadata
	ts, err := meta.Time()
	if err != nil {
		ts = time.Now().UTC()
	}
	toolVersion := data.ToolVersion
	if toolVersion == "" {
		toolVersion = meta.ToolVersion
	}
	commit := meta.Commit
	if commit == "" {
		commit = envelope.FallbackCommit
	}
	runPK, err := a.DB.InsertToolRun(lz.ToolRun{
		CollectionRunID: collection.CollectionRunID,
		RepoID:          orFallback(meta.RepoID, collection.RepoID),
		RunID:           orFallback(meta.RunID, collection.RunID),
		ToolName:        "trivy",
		ToolVersion:     orFallback(toolVersion, "unknown"),
		SchemaVersion:   orFallback(meta.SchemaVersion, "1.0.0"),
		Branch:          orFallback(meta.Branch, "main"),
		Commit:          commit,
		Timestamp:       ts,
	})
	if err != nil {
		return 0, err
	}

	targets, err := a.mapTargets(runPK, layoutPK, data.Targets)
	if err != nil {
		return 0, err
	}
	if err := a.DB.InsertTrivyTargets(targets); err != nil {
		return 0, err
	}
	vulns := a.mapVulnerabilities(runPK, data.Vulnerabilities)
	if err := a.DB.InsertTrivyVulnerabilities(vulns); err != nil {
		return 0, err
	}
	misconfigs, err := a.mapMisconfigs(runPK, layoutPK, data.IacMisconfigHolder.Misconfigurations)
	if err != nil {
		return 0, err
	}
	if err := a.DB.InsertTrivyIacMisconfigs(misconfigs); err != nil {
		return 0, err
	}

	a.logger().Info("persisted trivy results",
		"targets", len(targets), "vulnerabilities", len(vulns),
		"iac_misconfigs", len(misconfigs), "run_pk", runPK)
	return runPK, nil
}

func (a *Trivy) validateQuality(data trivyData) error {
	var errs []string
	for i, v := range data.Vulnerabilities {
		prefix := fmt.Sprintf("vulnerabilities[%d]", i)
		errs = append(errs, checkRequired(v.ID, prefix+".id")...)
		errs = append(errs, checkRequired(v.Package, prefix+".package")...)
		if v.Severity != "" && !validSeverity(v.Severity) {
			errs = append(errs, prefix+".severity must be CRITICAL, HIGH, MEDIUM, LOW or UNKNOWN")
		}
		if v.CVSSScore < 0 || v.CVSSScore > 10 {
			errs = append(errs, prefix+".cvss_score must be between 0 and 10")
		}
	}
	for i, t := range data.Targets {
		prefix := fmt.Sprintf("targets[%d]", i)
		errs = append(errs, checkRequired(t.Path, prefix+".path")...)
		if t.Path != "" {
			errs = append(errs, a.checkPath(t.Path, prefix)...)
		}
	}
	for i, m := range data.IacMisconfigHolder.Misconfigurations {
		prefix := fmt.Sprintf("iac_misconfigs[%d]", i)
		errs = append(errs, checkRequired(m.Target, prefix+".target")...)
		if m.Target != "" {
			errs = append(errs, a.checkPath(m.Target, prefix)...)
		}
		if m.StartLine != 0 && m.StartLine < 1 {
			errs = append(errs, prefix+".line_start must be >= 1")
		}
		if m.EndLine != 0 && m.EndLine < 1 {
			errs = append(errs, prefix+".line_end must be >= 1")
		}
	}
	return a.failQuality(a.Tool(), errs)
}

// targetKey derives a stable key from path and target type so vulnerabilities
// join their targets without a shared id in the payload.
func targetKey(path, targetType string) string {
	if targetType == "" {
		targetType = "unknown"
	}
	sum := sha256.Sum256([]byte(path + ":" + targetType))
	return hex.EncodeToString(sum[:])[:16]
}

func (a *Trivy) mapTargets(runPK, layoutPK int64, targets []trivyTarget) ([]lz.TrivyTarget, error) {
	seen := map[string]bool{}
	var out []lz.TrivyTarget
	for _, t := range targets {
		if t.Path == "" {
			continue
		}
		relativePath := a.normalize(t.Path)
		key := targetKey(relativePath, t.Type)
		if seen[key] {
			a.logger().Warn("skipping duplicate target", "tool", a.Tool(), "path", relativePath)
			continue
		}
		seen[key] = true

		// Lockfiles under vendored trees may not be in the layout.
		fileID, directoryID, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			a.logger().Warn("target not in layout", "tool", a.Tool(), "path", relativePath)
		}
		out = append(out, lz.TrivyTarget{
			RunPK:              runPK,
			TargetKey:          key,
			FileID:             fileID,
			DirectoryID:        directoryID,
			RelativePath:       relativePath,
			TargetType:         t.Type,
			VulnerabilityCount: t.VulnerabilityCount,
			CriticalCount:      t.CriticalCount,
			HighCount:          t.HighCount,
			MediumCount:        t.MediumCount,
			LowCount:           t.LowCount,
		})
	}
	return out, nil
}

func (a *Trivy) mapVulnerabilities(runPK int64, vulns []trivyVulnerability) []lz.TrivyVulnerability {
	type vulnKey struct {
		target string
		id     string
		pkg    string
	}
	seen := map[vulnKey]bool{}
	var out []lz.TrivyVulnerability
	for _, v := range vulns {
		path := "unknown"
		if v.Target != "" {
			path = a.normalize(v.Target)
		}
		key := vulnKey{targetKey(path, v.TargetType), v.ID, v.Package}
		if seen[key] {
			a.logger().Warn("skipping duplicate vulnerability",
				"tool", a.Tool(), "id", v.ID, "package", v.Package)
			continue
		}
		seen[key] = true
		out = append(out, lz.TrivyVulnerability{
			RunPK:            runPK,
			TargetKey:        key.target,
			VulnerabilityID:  v.ID,
			PackageName:      v.Package,
			InstalledVersion: v.InstalledVersion,
			FixedVersion:     v.FixedVersion,
			Severity:         v.Severity,
			CVSSScore:        v.CVSSScore,
			Title:            v.Title,
			PublishedDate:    v.PublishedDate,
			AgeDays:          v.AgeDays,
			FixAvailable:     v.FixAvailable,
		})
	}
	return out
}

func (a *Trivy) mapMisconfigs(runPK, layoutPK int64, misconfigs []trivyMisconfig) ([]lz.TrivyIacMisconfig, error) {
	type mcKey struct {
		path string
		id   string
		line int
	}
	seen := map[mcKey]bool{}
	var out []lz.TrivyIacMisconfig
	for _, m := range misconfigs {
		if m.Target == "" {
			continue
		}
		relativePath := a.normalize(m.Target)
		// Zero means a file-level issue; store -1 to keep the primary key
		// usable while staying distinguishable from real line numbers.
		startLine, endLine := m.StartLine, m.EndLine
		if startLine == 0 {
			startLine = -1
		}
		if endLine == 0 {
			endLine = -1
		}
		key := mcKey{relativePath, m.ID, startLine}
		if seen[key] {
			a.logger().Warn("skipping duplicate IaC misconfig",
				"tool", a.Tool(), "id", m.ID, "path", relativePath, "line", startLine)
			continue
		}
		seen[key] = true

		fileID, directoryID, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			a.logger().Warn("IaC file not in layout", "tool", a.Tool(), "path", relativePath)
		}
		out = append(out, lz.TrivyIacMisconfig{
			RunPK:        runPK,
			FileID:       fileID,
			DirectoryID:  directoryID,
			RelativePath: relativePath,
			MisconfigID:  m.ID,
			Severity:     m.Severity,
			Title:        m.Title,
			Description:  m.Description,
			Resolution:   m.Resolution,
			TargetType:   m.TargetType,
			StartLine:    startLine,
			EndLine:      endLine,
		})
	}
	return out, nil
}

func orFallback(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
