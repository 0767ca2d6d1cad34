// Package adapters maps per-tool envelope payloads into landing-zone rows.
// Every adapter follows the same persist sequence: data quality validation,
// idempotent table creation, landing-zone schema validation, then the
// tool-specific row mapping.
package adapters

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/pathutil"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

// ErrLayoutRunMissing is returned when a file-level adapter runs before the
// layout output of the same collection has been ingested.
var ErrLayoutRunMissing = errors.New("layout run not found")

// Adapter ingests one tool's envelope into the landing zone and returns the
// run_pk of the tool run it created.
type Adapter interface {
	Tool() string
	Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error)
}

// Base carries the shared state and helpers every adapter needs.
type Base struct {
	DB       *storage.DB
	RepoRoot string
	Log      *slog.Logger
}

func (b *Base) logger() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return slog.Default()
}

func (b *Base) normalize(raw string) string {
	return pathutil.Normalize(raw, b.RepoRoot)
}

// prepare runs the table-creation and schema-validation steps common to
// every adapter's persist sequence.
func (b *Base) prepare(tool string, ddl map[string]string, want map[string]map[string]string) error {
	created, err := b.DB.EnsureLZTables(ddl)
	if err != nil {
		return fmt.Errorf("%s: ensure tables: %w", tool, err)
	}
	for _, table := range created {
		b.logger().Info("created landing zone table", "tool", tool, "table", table)
	}
	violations, err := b.DB.ValidateLZSchema(want)
	if err != nil {
		return fmt.Errorf("%s: validate schema: %w", tool, err)
	}
	if len(violations) > 0 {
		for _, v := range violations {
			b.logger().Error("DATA_QUALITY_ERROR", "tool", tool, "detail", "lz schema "+v)
		}
		return fmt.Errorf("%s landing zone schema invalid (%d errors)", tool, len(violations))
	}
	return nil
}

// createToolRun inserts the lz_tool_runs row for this ingestion and returns
// its surrogate key.
func (b *Base) createToolRun(meta envelope.Metadata, collectionRunID string) (int64, error) {
	ts, err := meta.Time()
	if err != nil {
		return 0, err
	}
	return b.DB.InsertToolRun(lz.ToolRun{
		CollectionRunID: collectionRunID,
		RepoID:          meta.RepoID,
		RunID:           meta.RunID,
		ToolName:        meta.ToolName,
		ToolVersion:     meta.ToolVersion,
		SchemaVersion:   meta.SchemaVersion,
		Branch:          meta.Branch,
		Commit:          meta.Commit,
		Timestamp:       ts,
	})
}

// layoutRunPK resolves the layout run every file-level adapter joins against.
// Both historical tool names are accepted.
func (b *Base) layoutRunPK(collectionRunID string) (int64, error) {
	pk, err := b.DB.GetRunPKAny(collectionRunID, "layout-scanner", "layout")
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrLayoutRunMissing
	}
	return pk, err
}

// failQuality logs each violation as a DATA_QUALITY_ERROR line, then returns
// the single aggregate error. Returns nil when errs is empty.
func (b *Base) failQuality(tool string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	for _, e := range errs {
		b.logger().Error("DATA_QUALITY_ERROR", "tool", tool, "detail", e)
	}
	return fmt.Errorf("%s data quality validation failed (%d errors)", tool, len(errs))
}

// checkLineRange validates the shared line-number invariant: both bounds are
// >= 1 when present (0 meaning absent) and the end never precedes the start.
func checkLineRange(lineStart, lineEnd int, prefix string) []string {
	var errs []string
	if lineStart != 0 && lineStart < 1 {
		errs = append(errs, prefix+".line_start must be >= 1")
	}
	if lineEnd != 0 && lineEnd < 1 {
		errs = append(errs, prefix+".line_end must be >= 1")
	}
	if lineStart >= 1 && lineEnd >= 1 && lineEnd < lineStart {
		errs = append(errs, prefix+".line_end must be >= line_start")
	}
	return errs
}

func checkRequired(value, field string) []string {
	if value == "" {
		return []string{field + " is required"}
	}
	return nil
}

func checkNonNegative[N int | int64 | float64](value N, field string) []string {
	if value < 0 {
		return []string{fmt.Sprintf("%s must be non-negative, got %v", field, value)}
	}
	return nil
}

// checkPath validates that a tool-reported path normalizes to a usable
// repo-relative form.
func (b *Base) checkPath(raw, prefix string) []string {
	normalized := b.normalize(raw)
	if !pathutil.IsRepoRelative(normalized) {
		return []string{fmt.Sprintf("%s path invalid: %s -> %s", prefix, raw, normalized)}
	}
	return nil
}
