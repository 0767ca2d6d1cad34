package adapters

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var gitleaksDDL = map[string]string{
	"lz_gitleaks_secrets": `
		CREATE TABLE IF NOT EXISTS lz_gitleaks_secrets (
			run_pk BIGINT NOT NULL,
			file_id TEXT,
			directory_id TEXT,
			relative_path TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			secret_type TEXT,
			severity TEXT,
			line_number INTEGER,
			commit_hash TEXT,
			commit_author TEXT,
			commit_date TEXT,
			fingerprint TEXT NOT NULL,
			in_current_head BOOLEAN,
			entropy DOUBLE,
			description TEXT,
			PRIMARY KEY (run_pk, fingerprint)
		)`,
}

var gitleaksSchema = map[string]map[string]string{
	"lz_gitleaks_secrets": {
		"run_pk":        "BIGINT",
		"relative_path": "TEXT",
		"rule_id":       "TEXT",
		"fingerprint":   "TEXT",
	},
}

type gitleaksSecret struct {
	FilePath      string  `json:"file_path"`
	LineNumber    int     `json:"line_number"`
	RuleID        string  `json:"rule_id"`
	SecretType    string  `json:"secret_type"`
	Description   string  `json:"description"`
	Entropy       float64 `json:"entropy"`
	CommitHash    string  `json:"commit_hash"`
	CommitAuthor  string  `json:"commit_author"`
	CommitDate    string  `json:"commit_date"`
	Fingerprint   string  `json:"fingerprint"`
	InCurrentHead bool    `json:"in_current_head"`
	Severity      string  `json:"severity"`
}

type gitleaksData struct {
	Secrets []gitleaksSecret `json:"secrets"`
}

// Gitleaks ingests secret findings. Secrets found only in git history are
// kept; the file may no longer exist in the layout, so the file join is
// best-effort.
type Gitleaks struct {
	Base
}

func (a *Gitleaks) Tool() string { return "gitleaks" }

func (a *Gitleaks) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data gitleaksData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data.Secrets); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), gitleaksDDL, gitleaksSchema); err != nil {
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
	var rows []lz.GitleaksSecret
	for _, s := range data.Secrets {
		if seen[s.Fingerprint] {
			a.logger().Warn("skipping duplicate secret",
				"tool", a.Tool(), "fingerprint", s.Fingerprint)
			continue
		}
		seen[s.Fingerprint] = true

		relativePath := a.normalize(s.FilePath)
		fileID, directoryID, err := a.DB.GetFileRecord(layoutPK, relativePath)
		if err != nil {
			// Historical secrets may point at deleted files.
			a.logger().Warn("secret file not in layout", "tool", a.Tool(), "path", relativePath)
		}
		rows = append(rows, lz.GitleaksSecret{
			RunPK:         runPK,
			FileID:        fileID,
			DirectoryID:   directoryID,
			RelativePath:  relativePath,
			RuleID:        s.RuleID,
			SecretType:    s.SecretType,
			Severity:      s.Severity,
			LineNumber:    s.LineNumber,
			CommitHash:    s.CommitHash,
			CommitAuthor:  s.CommitAuthor,
			CommitDate:    s.CommitDate,
			Fingerprint:   s.Fingerprint,
			InCurrentHead: s.InCurrentHead,
			Entropy:       s.Entropy,
			Description:   s.Description,
		})
	}
	if err := a.DB.InsertGitleaksSecrets(rows); err != nil {
		return 0, err
	}
	a.logger().Info("persisted gitleaks secrets", "secrets", len(rows), "run_pk", runPK)
	return runPK, nil
}

func (a *Gitleaks) validateQuality(secrets []gitleaksSecret) error {
	var errs []string
	for i, s := range secrets {
		prefix := fmt.Sprintf("secrets[%d]", i)
		errs = append(errs, a.checkPath(s.FilePath, prefix)...)
		errs = append(errs, checkRequired(s.RuleID, prefix+".rule_id")...)
		errs = append(errs, checkRequired(s.Fingerprint, prefix+".fingerprint")...)
		if s.LineNumber != 0 && s.LineNumber < 1 {
			errs = append(errs, prefix+".line_number must be >= 1")
		}
		if s.Severity != "" && !validSeverity(s.Severity) {
			errs = append(errs, prefix+".severity must be CRITICAL, HIGH, MEDIUM or LOW")
		}
		errs = append(errs, checkNonNegative(s.Entropy, prefix+".entropy")...)
	}
	return a.failQuality(a.Tool(), errs)
}

func validSeverity(s string) bool {
	switch s {
	case "CRITICAL", "HIGH", "MEDIUM", "LOW", "UNKNOWN":
		return true
	}
	return false
}
