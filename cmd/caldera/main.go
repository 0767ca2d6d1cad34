package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/adapters"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/api"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/evaluation"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/insights"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/orchestrator"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/reporting"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/security"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/shared"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/suitedsl"
)

const version = "0.9.0"

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "ingest":
		ingestCmd(os.Args[2:])
	case "run":
		runCmd(os.Args[2:])
	case "evaluate":
		evaluateCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "diff":
		diffCmd(os.Args[2:])
	case "query":
		queryCmd(os.Args[2:])
	case "serve":
		serveCmd(os.Args[2:])
	case "version":
		fmt.Println("caldera", version, "schema:", lz.SchemaVersion)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `caldera – code quality landing zone

Usage:
  caldera ingest   --repo-id <id> --bundle <dir> [--repo-root <dir>] [--replace] [--log-dir <dir>] [--db ./caldera_sot.db]
  caldera run      --repo-path <dir> --repo-id <id> [--bundle <dir>] [--replace] [--skip tool,...] [--log-dir <dir>] [--db ./caldera_sot.db]
  caldera evaluate --analysis <output.json> --ground-truth <dir> [--suite suite.yaml] [--out report.json]
  caldera report   --collection <id> [--out <dir>] [--db ./caldera_sot.db]
  caldera diff     --base <collection-id> --head <collection-id> [--out <dir>] [--db ./caldera_sot.db]
  caldera query    --name <query> --collection <id> --tool <tool> [--params k=v,...] [--queries <dir>] [--db ./caldera_sot.db]
  caldera query    --list [--queries <dir>]
  caldera serve    [--addr :8080] [--db ./caldera_sot.db] [--bootstrap-admin user:pass]
  caldera version

All commands accept --config <caldera.yaml>.
`)
}

func openDB(dsn string) *storage.DB {
	db, err := storage.OpenSQLite(dsn)
	if err != nil {
		slog.Error("db open error", "err", err)
		os.Exit(1)
	}
	if err := db.EnsureSchema(); err != nil {
		slog.Error("db schema error", "err", err)
		os.Exit(1)
	}
	return db
}

func ingestCmd(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	repoID := fs.String("repo-id", "", "Repository identifier")
	runID := fs.String("run-id", "", "Run identifier (defaults to a new UUID)")
	bundle := fs.String("bundle", "", "Bundle directory with tool outputs")
	repoRoot := fs.String("repo-root", "", "Repository root for path normalization")
	branch := fs.String("branch", "", "Branch name")
	commit := fs.String("commit", "", "Commit SHA")
	replace := fs.Bool("replace", false, "Replace an existing collection for this repo+commit")
	logDir := fs.String("log-dir", "", "Tee orchestrator logs into a per-run file here")
	dbPath := fs.String("db", "", "SQLite database path")
	_ = fs.Parse(args)

	cfg, _ := shared.LoadConfig(*configPath)
	log := shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}
	if *bundle == "" {
		*bundle = cfg.Ingest.BundleRoot
	}
	if *repoRoot == "" {
		*repoRoot = cfg.Ingest.RepoRoot
	}
	if *repoID == "" {
		fmt.Fprintln(os.Stderr, "ingest: --repo-id is required")
		os.Exit(2)
	}

	db := openDB(*dbPath)
	defer db.Close()

	orch := &orchestrator.Orchestrator{
		DB:       db,
		Registry: adapters.NewRegistry(db, *repoRoot, log),
		Tools:    cfg.Tools,
		Log:      log,
	}
	opts := orchestrator.Options{
		RepoID:    *repoID,
		RunID:     *runID,
		Branch:    *branch,
		Commit:    *commit,
		Replace:   *replace,
		BundleDir: *bundle,
		LogDir:    *logDir,
	}
	if err := orch.Run(context.Background(), opts); err != nil {
		log.Error("ingest failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("Ingest OK")
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	repoPath := fs.String("repo-path", "", "Path of the repository to analyze")
	repoID := fs.String("repo-id", "", "Repository identifier")
	runID := fs.String("run-id", "", "Run identifier (defaults to a new UUID)")
	bundle := fs.String("bundle", "", "Directory for tool outputs")
	branch := fs.String("branch", "", "Branch name")
	commit := fs.String("commit", "", "Commit SHA")
	replace := fs.Bool("replace", false, "Replace an existing collection for this repo+commit")
	skip := fs.String("skip", "", "Comma-separated tools to skip")
	logDir := fs.String("log-dir", "", "Tee orchestrator logs into a per-run file here")
	dbPath := fs.String("db", "", "SQLite database path")
	_ = fs.Parse(args)

	cfg, _ := shared.LoadConfig(*configPath)
	log := shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}
	if *bundle == "" {
		*bundle = cfg.Ingest.BundleRoot
	}
	if *repoPath == "" || *repoID == "" {
		fmt.Fprintln(os.Stderr, "run: --repo-path and --repo-id are required")
		os.Exit(2)
	}

	skipTools := map[string]bool{}
	for _, t := range strings.Split(*skip, ",") {
		if t = strings.TrimSpace(t); t != "" {
			skipTools[t] = true
		}
	}

	db := openDB(*dbPath)
	defer db.Close()

	orch := &orchestrator.Orchestrator{
		DB:         db,
		Registry:   adapters.NewRegistry(db, *repoPath, log),
		Tools:      cfg.Tools,
		Log:        log,
		ToolOutput: os.Stderr,
	}
	opts := orchestrator.Options{
		RepoPath:  *repoPath,
		RepoID:    *repoID,
		RunID:     *runID,
		Branch:    *branch,
		Commit:    *commit,
		Replace:   *replace,
		RunTools:  true,
		SkipTools: skipTools,
		BundleDir: *bundle,
		LogDir:    *logDir,
	}
	if err := orch.Run(context.Background(), opts); err != nil {
		log.Error("collection run failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("Run OK")
}

func evaluateCmd(args []string) {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	analysisPath := fs.String("analysis", "", "Analyzer output envelope (output.json)")
	groundTruth := fs.String("ground-truth", "", "Ground truth fixture directory")
	suitePath := fs.String("suite", "", "YAML check-suite (optional)")
	outPath := fs.String("out", "", "Write the report JSON here (default stdout)")
	_ = fs.Parse(args)

	cfg, _ := shared.LoadConfig(*configPath)
	shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *groundTruth == "" {
		*groundTruth = cfg.Evaluation.GroundTruthDir
	}
	if *suitePath == "" {
		*suitePath = cfg.Evaluation.SuitePath
	}
	if *analysisPath == "" || *groundTruth == "" {
		fmt.Fprintln(os.Stderr, "evaluate: --analysis and --ground-truth are required")
		os.Exit(2)
	}

	analysis, err := evaluation.LoadAnalysis(*analysisPath)
	if err != nil {
		slog.Error("load analysis error", "err", err)
		os.Exit(1)
	}
	byLang, err := evaluation.LoadGroundTruthDir(*groundTruth)
	if err != nil {
		slog.Error("load ground truth error", "err", err)
		os.Exit(1)
	}
	merged := evaluation.MergeGroundTruth(byLang)

	suite := evaluation.DefaultSuite()
	if *suitePath != "" {
		suite, err = suitedsl.Load(*suitePath)
		if err != nil {
			slog.Error("load suite error", "err", err)
			os.Exit(1)
		}
	}

	report := suite.Run(analysis, merged, *analysisPath, *groundTruth)

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		slog.Error("encode report error", "err", err)
		os.Exit(1)
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, b, 0o644); err != nil {
			slog.Error("write report error", "err", err)
			os.Exit(1)
		}
	} else {
		fmt.Println(string(b))
	}
	fmt.Fprintln(os.Stderr, report.Summary())
	if report.Decision == evaluation.DecisionFail {
		os.Exit(1)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	collection := fs.String("collection", "", "Collection run ID")
	outDir := fs.String("out", "", "Output directory")
	dbPath := fs.String("db", "", "SQLite database path")
	_ = fs.Parse(args)

	cfg, _ := shared.LoadConfig(*configPath)
	shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *outDir == "" {
		*outDir = cfg.Reporting.OutDir
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}
	if *collection == "" {
		fmt.Fprintln(os.Stderr, "report: --collection is required")
		os.Exit(2)
	}

	db := openDB(*dbPath)
	defer db.Close()

	path, err := reporting.WriteJSON(db, *collection, *outDir)
	if err != nil {
		slog.Error("report error", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Report OK\n  %s\n", path)
}

func diffCmd(args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	base := fs.String("base", "", "Base collection run ID")
	head := fs.String("head", "", "Head collection run ID")
	outDir := fs.String("out", "", "Output directory")
	dbPath := fs.String("db", "", "SQLite database path")
	_ = fs.Parse(args)

	cfg, _ := shared.LoadConfig(*configPath)
	shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *outDir == "" {
		*outDir = cfg.Reporting.OutDir
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}
	if *base == "" || *head == "" {
		fmt.Fprintln(os.Stderr, "diff: --base and --head are required")
		os.Exit(2)
	}

	db := openDB(*dbPath)
	defer db.Close()

	path, err := reporting.WriteDiffJSON(db, *base, *head, *outDir)
	if err != nil {
		slog.Error("diff error", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Diff OK\n  %s\n", path)
}

func queryCmd(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	name := fs.String("name", "", "Named query to run")
	collection := fs.String("collection", "", "Collection run ID")
	tool := fs.String("tool", "", "Tool whose run the query targets")
	params := fs.String("params", "", "Extra template parameters as k=v,k2=v2")
	queriesDir := fs.String("queries", "", "Directory with <name>.sql files")
	list := fs.Bool("list", false, "List available queries and exit")
	dbPath := fs.String("db", "", "SQLite database path")
	_ = fs.Parse(args)

	cfg, _ := shared.LoadConfig(*configPath)
	shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *queriesDir == "" {
		*queriesDir = cfg.Insights.QueriesDir
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}

	if *list {
		names, err := insights.NewFetcher(nil, *queriesDir).ListQueries()
		if err != nil {
			slog.Error("list queries error", "err", err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	if *name == "" || *collection == "" || *tool == "" {
		fmt.Fprintln(os.Stderr, "query: --name, --collection and --tool are required")
		os.Exit(2)
	}

	p := map[string]any{}
	for _, kv := range strings.Split(*params, ",") {
		if kv = strings.TrimSpace(kv); kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "query: bad --params entry %q\n", kv)
			os.Exit(2)
		}
		p[k] = v
	}

	db := openDB(*dbPath)
	defer db.Close()

	runPK, err := db.GetRunPKAny(*collection, *tool)
	if err != nil {
		slog.Error("resolve tool run error", "collection", *collection, "tool", *tool, "err", err)
		os.Exit(1)
	}
	rows, err := insights.NewFetcher(db, *queriesDir).Fetch(*name, runPK, p)
	if err != nil {
		slog.Error("query error", "query", *name, "err", err)
		os.Exit(1)
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		slog.Error("encode error", "err", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	addr := fs.String("addr", "", "Listen address")
	dbPath := fs.String("db", "", "SQLite database path")
	bootstrap := fs.String("bootstrap-admin", "", "Create an admin user as user:pass if missing")
	_ = fs.Parse(args)

	cfg, _ := shared.LoadConfig(*configPath)
	log := shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)

	if *addr == "" {
		*addr = cfg.API.Addr
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.DSN
	}

	db := openDB(*dbPath)
	defer db.Close()

	if *bootstrap != "" {
		user, pass, ok := strings.Cut(*bootstrap, ":")
		if !ok || user == "" || pass == "" {
			fmt.Fprintln(os.Stderr, "serve: --bootstrap-admin must be user:pass")
			os.Exit(2)
		}
		if _, _, err := db.GetUserByUsername(user); err != nil {
			hash, err := security.HashPassword(pass)
			if err != nil {
				log.Error("hash error", "err", err)
				os.Exit(1)
			}
			if _, err := db.CreateUser(user, hash, "admin"); err != nil {
				log.Error("bootstrap admin error", "err", err)
				os.Exit(1)
			}
			log.Info("admin user created", "username", user)
		}
	}

	srv := &api.Server{
		DB:              db,
		Store:           db,
		UserStore:       db,
		Logger:          log,
		SessionDuration: time.Duration(cfg.API.SessionMinutes) * time.Minute,
		QueriesDir:      cfg.Insights.QueriesDir,
	}
	log.Info("api listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, srv.Routes()); err != nil {
		log.Error("serve error", "err", err)
		os.Exit(1)
	}
}
