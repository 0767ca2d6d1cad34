// Package lz holds the landing-zone row model: one struct per lz_* table,
// plus the unified finding view used by reports and the API.
package lz

import (
	"strconv"
	"strings"
	"time"
)

const SchemaVersion = "1.0"

// CollectionRun groups every tool execution for one repo+commit collection.
type CollectionRun struct {
	CollectionRunID string     `json:"collection_run_id"`
	RepoID          string     `json:"repo_id"`
	RunID           string     `json:"run_id"`
	Branch          string     `json:"branch"`
	Commit          string     `json:"commit"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Status          string     `json:"status"` // running|completed|failed
}

// ToolRun is one tool execution inside a collection. RunPK is the surrogate
// key every landing-zone row carries.
type ToolRun struct {
	RunPK           int64     `json:"run_pk"`
	CollectionRunID string    `json:"collection_run_id"`
	RepoID          string    `json:"repo_id"`
	RunID           string    `json:"run_id"`
	ToolName        string    `json:"tool_name"`
	ToolVersion     string    `json:"tool_version"`
	SchemaVersion   string    `json:"schema_version"`
	Branch          string    `json:"branch"`
	Commit          string    `json:"commit"`
	Timestamp       time.Time `json:"timestamp"`
}

type LayoutFile struct {
	RunPK        int64  `json:"run_pk"`
	FileID       string `json:"file_id"`
	RelativePath string `json:"relative_path"`
	DirectoryID  string `json:"directory_id"`
	Filename     string `json:"filename"`
	Extension    string `json:"extension,omitempty"`
	Language     string `json:"language,omitempty"`
	Category     string `json:"category,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
	LineCount    int    `json:"line_count"`
	IsBinary     bool   `json:"is_binary"`
}

type LayoutDirectory struct {
	RunPK          int64  `json:"run_pk"`
	DirectoryID    string `json:"directory_id"`
	RelativePath   string `json:"relative_path"`
	ParentID       string `json:"parent_id,omitempty"`
	Depth          int    `json:"depth"`
	FileCount      int    `json:"file_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

type SccFileMetric struct {
	RunPK             int64   `json:"run_pk"`
	FileID            string  `json:"file_id"`
	DirectoryID       string  `json:"directory_id"`
	RelativePath      string  `json:"relative_path"`
	Filename          string  `json:"filename"`
	Extension         string  `json:"extension,omitempty"`
	Language          string  `json:"language,omitempty"`
	LinesTotal        int     `json:"lines_total"`
	CodeLines         int     `json:"code_lines"`
	CommentLines      int     `json:"comment_lines"`
	BlankLines        int     `json:"blank_lines"`
	Bytes             int64   `json:"bytes"`
	Complexity        int     `json:"complexity"`
	ULOC              int     `json:"uloc"`
	CommentRatio      float64 `json:"comment_ratio"`
	BlankRatio        float64 `json:"blank_ratio"`
	CodeRatio         float64 `json:"code_ratio"`
	ComplexityDensity float64 `json:"complexity_density"`
	Dryness           float64 `json:"dryness"`
	BytesPerLOC       float64 `json:"bytes_per_loc"`
	IsMinified        bool    `json:"is_minified"`
	IsGenerated       bool    `json:"is_generated"`
	IsBinary          bool    `json:"is_binary"`
	Classification    string  `json:"classification,omitempty"`
}

type LizardFileMetric struct {
	RunPK         int64   `json:"run_pk"`
	FileID        string  `json:"file_id"`
	RelativePath  string  `json:"relative_path"`
	Language      string  `json:"language,omitempty"`
	NLOC          int     `json:"nloc"`
	FunctionCount int     `json:"function_count"`
	TotalCCN      int     `json:"total_ccn"`
	AvgCCN        float64 `json:"avg_ccn"`
	MaxCCN        int     `json:"max_ccn"`
}

type LizardFunctionMetric struct {
	RunPK        int64  `json:"run_pk"`
	FileID       string `json:"file_id"`
	FunctionName string `json:"function_name"`
	LongName     string `json:"long_name,omitempty"`
	CCN          int    `json:"ccn"`
	NLOC         int    `json:"nloc"`
	Params       int    `json:"params"`
	TokenCount   int    `json:"token_count"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
}

type SemgrepSmell struct {
	RunPK        int64  `json:"run_pk"`
	FileID       string `json:"file_id"`
	DirectoryID  string `json:"directory_id"`
	RelativePath string `json:"relative_path"`
	RuleID       string `json:"rule_id"`
	SmellID      string `json:"dd_smell_id,omitempty"`
	Category     string `json:"dd_category,omitempty"`
	Severity     string `json:"severity"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	ColumnStart  int    `json:"column_start"`
	ColumnEnd    int    `json:"column_end"`
	Message      string `json:"message,omitempty"`
	CodeSnippet  string `json:"code_snippet,omitempty"`
}

type GitleaksSecret struct {
	RunPK         int64   `json:"run_pk"`
	FileID        string  `json:"file_id"`
	DirectoryID   string  `json:"directory_id"`
	RelativePath  string  `json:"relative_path"`
	RuleID        string  `json:"rule_id"`
	SecretType    string  `json:"secret_type,omitempty"`
	Severity      string  `json:"severity"`
	LineNumber    int     `json:"line_number"`
	CommitHash    string  `json:"commit_hash,omitempty"`
	CommitAuthor  string  `json:"commit_author,omitempty"`
	CommitDate    string  `json:"commit_date,omitempty"`
	Fingerprint   string  `json:"fingerprint"`
	InCurrentHead bool    `json:"in_current_head"`
	Entropy       float64 `json:"entropy"`
	Description   string  `json:"description,omitempty"`
}

type RoslynViolation struct {
	RunPK        int64  `json:"run_pk"`
	FileID       string `json:"file_id"`
	DirectoryID  string `json:"directory_id"`
	RelativePath string `json:"relative_path"`
	RuleID       string `json:"rule_id"`
	Category     string `json:"dd_category,omitempty"`
	Severity     string `json:"severity"`
	Message      string `json:"message,omitempty"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	ColumnStart  int    `json:"column_start"`
	ColumnEnd    int    `json:"column_end"`
}

type SonarqubeIssue struct {
	RunPK        int64  `json:"run_pk"`
	FileID       string `json:"file_id"`
	DirectoryID  string `json:"directory_id"`
	RelativePath string `json:"relative_path"`
	IssueKey     string `json:"issue_key"`
	RuleID       string `json:"rule_id"`
	IssueType    string `json:"issue_type,omitempty"`
	Severity     string `json:"severity"`
	Message      string `json:"message,omitempty"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	Effort       string `json:"effort,omitempty"`
	Status       string `json:"status,omitempty"`
	Tags         string `json:"tags,omitempty"`
}

type SonarqubeMetric struct {
	RunPK                   int64   `json:"run_pk"`
	FileID                  string  `json:"file_id"`
	DirectoryID             string  `json:"directory_id"`
	RelativePath            string  `json:"relative_path"`
	NCLOC                   int     `json:"ncloc"`
	Complexity              int     `json:"complexity"`
	CognitiveComplexity     int     `json:"cognitive_complexity"`
	DuplicatedLines         int     `json:"duplicated_lines"`
	DuplicatedLinesDensity  float64 `json:"duplicated_lines_density"`
	CodeSmells              int     `json:"code_smells"`
	Bugs                    int     `json:"bugs"`
	Vulnerabilities         int     `json:"vulnerabilities"`
}

type TrivyTarget struct {
	RunPK              int64  `json:"run_pk"`
	TargetKey          string `json:"target_key"`
	FileID             string `json:"file_id"`
	DirectoryID        string `json:"directory_id"`
	RelativePath       string `json:"relative_path"`
	TargetType         string `json:"target_type,omitempty"`
	VulnerabilityCount int    `json:"vulnerability_count"`
	CriticalCount      int    `json:"critical_count"`
	HighCount          int    `json:"high_count"`
	MediumCount        int    `json:"medium_count"`
	LowCount           int    `json:"low_count"`
}

type TrivyVulnerability struct {
	RunPK            int64   `json:"run_pk"`
	TargetKey        string  `json:"target_key"`
	VulnerabilityID  string  `json:"vulnerability_id"`
	PackageName      string  `json:"package_name"`
	InstalledVersion string  `json:"installed_version,omitempty"`
	FixedVersion     string  `json:"fixed_version,omitempty"`
	Severity         string  `json:"severity"`
	CVSSScore        float64 `json:"cvss_score"`
	Title            string  `json:"title,omitempty"`
	PublishedDate    string  `json:"published_date,omitempty"`
	AgeDays          int     `json:"age_days"`
	FixAvailable     bool    `json:"fix_available"`
}

type TrivyIacMisconfig struct {
	RunPK        int64  `json:"run_pk"`
	FileID       string `json:"file_id"`
	DirectoryID  string `json:"directory_id"`
	RelativePath string `json:"relative_path"`
	MisconfigID  string `json:"misconfig_id"`
	Severity     string `json:"severity"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	TargetType   string `json:"target_type,omitempty"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
}

type GitSizerMetric struct {
	RunPK             int64  `json:"run_pk"`
	RepoID            string `json:"repo_id"`
	HealthGrade       string `json:"health_grade"`
	DurationMS        int64  `json:"duration_ms"`
	CommitCount       int64  `json:"commit_count"`
	CommitTotalSize   int64  `json:"commit_total_size"`
	MaxCommitSize     int64  `json:"max_commit_size"`
	MaxHistoryDepth   int64  `json:"max_history_depth"`
	MaxParentCount    int64  `json:"max_parent_count"`
	TreeCount         int64  `json:"tree_count"`
	TreeTotalSize     int64  `json:"tree_total_size"`
	TreeTotalEntries  int64  `json:"tree_total_entries"`
	MaxTreeEntries    int64  `json:"max_tree_entries"`
	BlobCount         int64  `json:"blob_count"`
	BlobTotalSize     int64  `json:"blob_total_size"`
	MaxBlobSize       int64  `json:"max_blob_size"`
	TagCount          int64  `json:"tag_count"`
	MaxTagDepth       int64  `json:"max_tag_depth"`
	ReferenceCount    int64  `json:"reference_count"`
	BranchCount       int64  `json:"branch_count"`
	MaxPathDepth      int64  `json:"max_path_depth"`
	MaxPathLength     int64  `json:"max_path_length"`
	ExpandedTreeCount int64  `json:"expanded_tree_count"`
	ExpandedBlobCount int64  `json:"expanded_blob_count"`
	ExpandedBlobSize  int64  `json:"expanded_blob_size"`
}

type GitSizerViolation struct {
	RunPK        int64   `json:"run_pk"`
	Metric       string  `json:"metric"`
	ValueDisplay string  `json:"value_display,omitempty"`
	RawValue     float64 `json:"raw_value"`
	Level        int     `json:"level"` // 1..4
	ObjectRef    string  `json:"object_ref,omitempty"`
}

type GitSizerLfsCandidate struct {
	RunPK    int64  `json:"run_pk"`
	FilePath string `json:"file_path"`
}

type GitFameAuthor struct {
	RunPK           int64   `json:"run_pk"`
	AuthorName      string  `json:"author_name"`
	AuthorEmail     string  `json:"author_email,omitempty"`
	SurvivingLOC    int64   `json:"surviving_loc"`
	OwnershipPct    float64 `json:"ownership_pct"`
	InsertionsTotal int64   `json:"insertions_total"`
	DeletionsTotal  int64   `json:"deletions_total"`
	CommitCount     int64   `json:"commit_count"`
	FilesTouched    int64   `json:"files_touched"`
}

type GitFameSummary struct {
	RunPK        int64   `json:"run_pk"`
	RepoID       string  `json:"repo_id"`
	AuthorCount  int     `json:"author_count"`
	TotalLOC     int64   `json:"total_loc"`
	HHIIndex     float64 `json:"hhi_index"`
	BusFactor    int     `json:"bus_factor"`
	TopAuthorPct float64 `json:"top_author_pct"`
	TopTwoPct    float64 `json:"top_two_pct"`
}

// Finding is the cross-tool view of one actionable result, assembled from
// the per-tool finding tables for reports, diffs and the API.
type Finding struct {
	Tool         string `json:"tool"`
	RuleID       string `json:"rule_id"`
	Severity     string `json:"severity"`
	RelativePath string `json:"relative_path"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	Message      string `json:"message,omitempty"`
}

// Key is the logical identity of a finding across collection runs.
func (f Finding) Key() string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(f.Tool))
	sb.WriteByte('|')
	sb.WriteString(strings.ToUpper(strings.TrimSpace(f.RuleID)))
	sb.WriteByte('|')
	sb.WriteString(f.RelativePath)
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(f.LineStart))
	return sb.String()
}

// SeverityRank orders tool severities for filtering and stable output.
func SeverityRank(sev string) int {
	switch strings.ToUpper(strings.TrimSpace(sev)) {
	case "CRITICAL":
		return 4
	case "HIGH":
		return 3
	case "MEDIUM":
		return 2
	case "LOW":
		return 1
	default:
		return 0 // UNKNOWN or empty
	}
}
