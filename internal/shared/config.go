package shared

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ToolConfig describes one analysis tool the orchestrator can execute.
type ToolConfig struct {
	Name string            `yaml:"name"` // "layout-scanner", "scc", ...
	Path string            `yaml:"path"` // tool root containing a Makefile
	Env  map[string]string `yaml:"env"`  // extra environment for make analyze
}

type Config struct {
	Database struct {
		Driver string `yaml:"driver"` // "sqlite" (default)
		DSN    string `yaml:"dsn"`    // "./caldera_sot.db"
	} `yaml:"database"`

	Ingest struct {
		RepoRoot   string `yaml:"repo_root"`   // repo being analyzed; path normalization base
		BundleRoot string `yaml:"bundle_root"` // default location of tool outputs
	} `yaml:"ingest"`

	Tools []ToolConfig `yaml:"tools"`

	Evaluation struct {
		GroundTruthDir string `yaml:"ground_truth_dir"` // per-language fixture JSONs
		SuitePath      string `yaml:"suite_path"`       // YAML check-suite pack
	} `yaml:"evaluation"`

	Insights struct {
		QueriesDir string `yaml:"queries_dir"` // named .sql templates
	} `yaml:"insights"`

	Reporting struct {
		OutDir string `yaml:"out_dir"` // "./reports"
	} `yaml:"reporting"`

	API struct {
		Addr           string `yaml:"addr"`            // ":8080"
		SessionMinutes int    `yaml:"session_minutes"` // 720
	} `yaml:"api"`

	Logging struct {
		Format string `yaml:"format"` // "json"|"text"
		Level  string `yaml:"level"`  // "info"|"debug"|"warn"|"error"
	} `yaml:"logging"`
}

func DefaultConfig() Config {
	var c Config
	c.Database.Driver = "sqlite"
	c.Database.DSN = "./caldera_sot.db"
	c.Ingest.BundleRoot = "./outputs"
	c.Insights.QueriesDir = "./queries"
	c.Reporting.OutDir = "./reports"
	c.API.Addr = ":8080"
	c.API.SessionMinutes = 720
	c.Logging.Format = "json"
	c.Logging.Level = "info"
	return c
}

func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	// Env overrides (simple, explicit)
	if v := os.Getenv("CALDERA_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("CALDERA_BUNDLE_ROOT"); v != "" {
		c.Ingest.BundleRoot = v
	}
	if v := os.Getenv("CALDERA_OUT_DIR"); v != "" {
		c.Reporting.OutDir = v
	}
	if v := os.Getenv("CALDERA_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("CALDERA_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CALDERA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return c, nil
}
