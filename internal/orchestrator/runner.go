package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/shared"
)

// RunInfo is the identity a tool run executes under.
type RunInfo struct {
	RepoPath string
	RepoID   string
	RunID    string
	Branch   string
	Commit   string
}

// RunTool executes `make analyze` in the tool's directory with the contract
// environment. COMMIT is only set for real commits so tools can compute their
// own fallback hash for non-git repos. Tool output goes to w.
func RunTool(ctx context.Context, tool shared.ToolConfig, info RunInfo, outputDir string, w io.Writer) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir for %s: %w", tool.Name, err)
	}
	cmd := exec.CommandContext(ctx, "make", "analyze")
	cmd.Dir = tool.Path
	env := os.Environ()
	env = append(env,
		"REPO_PATH="+info.RepoPath,
		"REPO_NAME="+info.RepoID,
		"RUN_ID="+info.RunID,
		"REPO_ID="+info.RepoID,
		"BRANCH="+info.Branch,
		"OUTPUT_DIR="+outputDir,
	)
	if !envelope.IsFallbackCommit(info.Commit) {
		env = append(env, "COMMIT="+info.Commit)
	}
	for k, v := range tool.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", tool.Name, err)
	}
	return nil
}

// defaultOutputPath is where a tool run leaves its envelope.
func defaultOutputPath(outputRoot, tool, runID string) string {
	return filepath.Join(outputRoot, tool, runID, "output.json")
}
