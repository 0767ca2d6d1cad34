// Package orchestrator drives a full collection: resolve or create the
// collection run, optionally execute the configured tools, ingest their
// outputs layout-first, and mark the collection completed or failed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/adapters"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/shared"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

// ErrCollectionExists is returned when a collection for the same repo+commit
// already exists and replace was not requested.
var ErrCollectionExists = errors.New("collection run exists for repo+commit, use replace to overwrite")

// ingestOrder fixes the ingestion sequence after layout so runs are
// reproducible regardless of manifest map ordering.
var ingestOrder = []string{
	"scc",
	"lizard",
	"roslyn-analyzers",
	"semgrep",
	"sonarqube",
	"trivy",
	"gitleaks",
	"git-sizer",
	"git-fame",
}

// Options configures one orchestrator run.
type Options struct {
	RepoPath  string
	RepoID    string
	RunID     string
	Branch    string
	Commit    string
	Replace   bool
	RunTools  bool
	SkipTools map[string]bool

	// BundleDir is where tool outputs are read from (and written to when
	// RunTools is set).
	BundleDir string

	// LogDir, when set, makes the run tee its logs into
	// caldera_orchestrator_<run_id>.log under this directory.
	LogDir string
}

// Orchestrator owns the landing zone, the adapter registry, and the tool
// configuration for one collection run.
type Orchestrator struct {
	DB       *storage.DB
	Registry *adapters.Registry
	Tools    []shared.ToolConfig
	Log      *slog.Logger

	// ToolOutput receives subprocess output from executed tools. Defaults to
	// io.Discard.
	ToolOutput io.Writer
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.Default()
}

func (o *Orchestrator) toolOutput() io.Writer {
	if o.ToolOutput != nil {
		return o.ToolOutput
	}
	return io.Discard
}

// Run executes a full collection. On any failure the collection run is
// marked failed before the error is returned.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (err error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.Commit == "" {
		opts.Commit = envelope.FallbackCommit
	}
	if opts.LogDir != "" {
		f, ferr := openRunLog(opts.LogDir, opts.RunID)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		prev := o.Log
		o.Log = shared.InitLoggerTo(io.MultiWriter(os.Stdout, f), "", "")
		defer func() { o.Log = prev }()
	}
	if err := o.DB.EnsureSchema(); err != nil {
		return err
	}

	collection, err := o.getOrCreateCollection(opts)
	if err != nil {
		return err
	}
	o.logger().Info("collection run",
		"collection_run_id", collection.CollectionRunID,
		"repo_id", collection.RepoID,
		"branch", collection.Branch,
		"commit", collection.Commit)

	defer func() {
		now := time.Now().UTC()
		status := "completed"
		if err != nil {
			status = "failed"
		}
		if markErr := o.DB.MarkCollectionStatus(collection.CollectionRunID, status, &now); markErr != nil && err == nil {
			err = markErr
		}
	}()

	if opts.RunTools {
		if err := o.runTools(ctx, opts, collection); err != nil {
			return err
		}
	}

	bundle, err := o.resolveBundle(opts, collection)
	if err != nil {
		return err
	}
	o.logger().Info("bundle resolved", "dir", bundle.Dir, "tools", bundle.Tools())
	return o.Ingest(ctx, bundle, collection)
}

// openRunLog creates the per-run log file the orchestrator tees into.
func openRunLog(dir, runID string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, "caldera_orchestrator_"+runID+".log")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	return f, nil
}

// getOrCreateCollection resolves the collection run for repo+commit. An
// existing collection is an error unless replace is set, in which case its
// landing-zone rows are deleted and the run rewound to running.
func (o *Orchestrator) getOrCreateCollection(opts Options) (lz.CollectionRun, error) {
	existing, err := o.DB.GetCollectionRunByRepoCommit(opts.RepoID, opts.Commit)
	switch {
	case err == nil:
		if !opts.Replace {
			return lz.CollectionRun{}, ErrCollectionExists
		}
		if existing.RunID != opts.RunID {
			o.logger().Info("replacing existing run",
				"existing_run_id", existing.RunID, "requested_run_id", opts.RunID)
		}
		if err := o.DB.DeleteCollectionData(existing.CollectionRunID); err != nil {
			return lz.CollectionRun{}, err
		}
		now := time.Now().UTC()
		if err := o.DB.ResetCollectionRun(existing.CollectionRunID, now); err != nil {
			return lz.CollectionRun{}, err
		}
		existing.StartedAt = now
		existing.CompletedAt = nil
		existing.Status = "running"
		return existing, nil
	case errors.Is(err, storage.ErrNotFound):
		run := lz.CollectionRun{
			CollectionRunID: opts.RunID,
			RepoID:          opts.RepoID,
			RunID:           opts.RunID,
			Branch:          opts.Branch,
			Commit:          opts.Commit,
			StartedAt:       time.Now().UTC(),
			Status:          "running",
		}
		if err := o.DB.InsertCollectionRun(run); err != nil {
			return lz.CollectionRun{}, err
		}
		return run, nil
	default:
		return lz.CollectionRun{}, err
	}
}

func (o *Orchestrator) runTools(ctx context.Context, opts Options, collection lz.CollectionRun) error {
	info := RunInfo{
		RepoPath: opts.RepoPath,
		RepoID:   opts.RepoID,
		RunID:    collection.RunID,
		Branch:   collection.Branch,
		Commit:   collection.Commit,
	}
	for _, tool := range o.Tools {
		if opts.SkipTools[tool.Name] {
			o.logger().Info("skipping tool", "tool", tool.Name)
			continue
		}
		start := time.Now()
		outputPath := defaultOutputPath(opts.BundleDir, tool.Name, collection.RunID)
		if err := RunTool(ctx, tool, info, filepath.Dir(outputPath), o.toolOutput()); err != nil {
			return err
		}
		o.logger().Info("tool completed",
			"tool", tool.Name, "output", outputPath,
			"duration", time.Since(start).Round(10*time.Millisecond).String())
	}
	return nil
}

// resolveBundle loads the bundle manifest if present, or synthesizes one
// from the run-tools output convention.
func (o *Orchestrator) resolveBundle(opts Options, collection lz.CollectionRun) (*Bundle, error) {
	bundle, err := LoadBundle(opts.BundleDir)
	if err == nil {
		if bundle.Manifest.RepoID != collection.RepoID {
			return nil, fmt.Errorf("bundle repo_id %q does not match collection %q",
				bundle.Manifest.RepoID, collection.RepoID)
		}
		return bundle, nil
	}
	outputs := map[string]string{}
	outputs["layout-scanner"] = defaultOutputPath("", "layout-scanner", collection.RunID)
	for _, tool := range ingestOrder {
		outputs[tool] = defaultOutputPath("", tool, collection.RunID)
	}
	return &Bundle{
		Dir: opts.BundleDir,
		Manifest: Manifest{
			RepoID:  collection.RepoID,
			RunID:   collection.RunID,
			Branch:  collection.Branch,
			Commit:  collection.Commit,
			Outputs: outputs,
		},
	}, nil
}

// Ingest loads every available tool output from the bundle into the landing
// zone, layout first. Layout is mandatory; every other tool is ingested only
// when its output file exists.
func (o *Orchestrator) Ingest(ctx context.Context, bundle *Bundle, collection lz.CollectionRun) error {
	layoutPath, ok := bundle.OutputPath("layout-scanner")
	if !ok {
		if layoutPath, ok = bundle.OutputPath("layout"); !ok {
			return fmt.Errorf("layout output is required for ingestion")
		}
	}
	if err := o.ingestOne(ctx, "layout", layoutPath, collection); err != nil {
		return err
	}
	for _, tool := range ingestOrder {
		path, ok := bundle.OutputPath(tool)
		if !ok {
			continue
		}
		if err := o.ingestOne(ctx, tool, path, collection); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) ingestOne(ctx context.Context, tool, path string, collection lz.CollectionRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	adapter, err := o.Registry.Lookup(tool)
	if err != nil {
		return err
	}
	env, err := envelope.Load(path)
	if err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	// Tools whose exporters predate the strict envelope only get the
	// identity check when their metadata is complete.
	if !o.Registry.Relaxed(tool) {
		if err := env.Metadata.Check(); err != nil {
			return fmt.Errorf("%s: %w", tool, err)
		}
		if err := env.Validate(collection.RepoID, collection.RunID); err != nil {
			return fmt.Errorf("%s: %w", tool, err)
		}
	}
	start := time.Now()
	runPK, err := adapter.Ingest(env, collection)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", tool, err)
	}
	o.logger().Info("ingested tool output",
		"tool", tool, "run_pk", runPK,
		"duration", time.Since(start).Round(time.Millisecond).String())
	return nil
}
