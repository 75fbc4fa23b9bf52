// Package notes is the interface to the external legacy grading-notes tool.
// The tool itself is a black box: given the suite rubric, a captured run
// log, and an evaluator identifier, it writes a JSON note document.
package notes

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/classkit/checkoff/pkg/config"
)

// Invocation carries everything the external tool needs for one notes pass.
type Invocation struct {
	SuiteConfigPath string
	LogPath         string
	OutPath         string
	ScriptPath      string
	Evaluator       string
}

// Tool runs the external grading-notes tool. A nonzero exit from the tool is
// an error; the caller treats it as fatal.
type Tool interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecTool invokes the grading script directly as
//
//	<script> <suite-config> <log> <notes-out> <evaluator>
//
// inheriting the console for its own diagnostics.
type ExecTool struct{}

var _ Tool = ExecTool{}

func (ExecTool) Run(ctx context.Context, inv Invocation) error {
	cmd := exec.CommandContext(ctx, inv.ScriptPath,
		inv.SuiteConfigPath, inv.LogPath, inv.OutPath, inv.Evaluator)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("grading notes tool '%s' failed: %w", inv.ScriptPath, err)
	}
	return nil
}

// Pass runs the notes pass for one runner. It returns the notes file path,
// or "" when the pass was skipped (no script configured, runner has no
// evaluator) or when the tool succeeded without producing a file. The
// latter is a warning, not an error.
func Pass(ctx context.Context, tool Tool, cfg *config.RunConfig, r config.Runner, logPath, outPath string) (string, error) {
	if cfg.GradeScript == "" || r.Eval == "" {
		return "", nil
	}

	inv := Invocation{
		SuiteConfigPath: cfg.SuiteConfig,
		LogPath:         logPath,
		OutPath:         outPath,
		ScriptPath:      cfg.GradeScript,
		Evaluator:       r.Eval,
	}
	if err := tool.Run(ctx, inv); err != nil {
		return "", err
	}

	if _, err := os.Stat(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: grading notes tool wrote no '%s', continuing without notes\n", outPath)
		return "", nil
	}

	return outPath, nil
}
