// Package pipeline sequences one checkoff invocation: stage the workspace,
// execute the runner, run the notes pass, aggregate results, and reconcile
// against the recorded baseline.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/classkit/checkoff/pkg/compare"
	"github.com/classkit/checkoff/pkg/config"
	"github.com/classkit/checkoff/pkg/notes"
	"github.com/classkit/checkoff/pkg/results"
	"github.com/classkit/checkoff/pkg/runner"
	"github.com/classkit/checkoff/pkg/util"
	"github.com/classkit/checkoff/pkg/workspace"
)

// State tracks pipeline progress. Transitions are linear, never backward.
type State string

const (
	StateStaged     State = "staged"
	StateExecuted   State = "executed"
	StateNotated    State = "notated"
	StateAggregated State = "aggregated"
	StateCompared   State = "compared"
	StateDone       State = "done"
)

// Options are fixed for the lifetime of one invocation.
type Options struct {
	// WorkDir overrides the default workspace root. Non-default roots are
	// created but never destroyed up front.
	WorkDir string
	// OutputDir overrides where run artifacts land.
	OutputDir string
	// KeepWork preserves the workspace after the run.
	KeepWork bool
	// SkipCheck terminates the pipeline at aggregation; the verdict comes
	// from the exit code alone.
	SkipCheck bool
	// BaselinePath overrides the expected-results path convention.
	BaselinePath string
	// SaveBaseline records the aggregated document as the new baseline
	// instead of comparing against one.
	SaveBaseline bool
	// CopyResultTo receives a copy of the final result document.
	CopyResultTo string
	// NotesTool overrides the external grading-notes tool (tests use this).
	NotesTool notes.Tool
}

// Outcome is the overall result of one invocation.
type Outcome struct {
	// Verdict is the overall pass/fail: the comparison verdict when a
	// baseline check happened, otherwise exit-code success.
	Verdict bool
	// Compared is set when a baseline comparison was performed.
	Compared bool
	// Comparison holds the baseline reconciliation, nil unless Compared.
	Comparison *compare.Outcome
	// Document is the aggregated result document.
	Document *results.Document
	// BaselinePath is the expected-results file consulted (or saved).
	BaselinePath string
	// BaselineMissing is set when no baseline exists and the check was not
	// explicitly skipped.
	BaselineMissing bool
	// BaselineSaved is set when the run recorded a new baseline.
	BaselineSaved bool
	// ExitCode is the executed command's exit status.
	ExitCode int
	// Workspace is the staged execution root.
	Workspace *workspace.Workspace
}

// Pipeline runs one submission through one runner, start to finish. There
// is no retry state: a fatal error at any transition aborts the invocation.
type Pipeline struct {
	cfg        *config.RunConfig
	runnerName string
	run        config.Runner
	submission string
	opts       Options
	state      State
}

// New validates the requested command against the suite configuration and
// prepares a pipeline. An unconfigured command fails with
// config.ErrUnknownRunner.
func New(cfg *config.RunConfig, submissionDir, command string, opts Options) (*Pipeline, error) {
	run, err := cfg.Suite.Runner(command)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(submissionDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve submission dir '%s': %w", submissionDir, err)
	}

	return &Pipeline{
		cfg:        cfg,
		runnerName: command,
		run:        run,
		submission: abs,
		opts:       opts,
	}, nil
}

// State returns the last completed pipeline state.
func (p *Pipeline) State() State {
	return p.state
}

// Run drives the invocation through Staged → Executed → Notated →
// Aggregated → Compared → Done. When no baseline comparison happens (check
// skipped, baseline missing, or baseline being recorded) the pipeline
// terminates at Aggregated and the verdict is exit-code success.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	ws, err := p.stage(ctx)
	if err != nil {
		return nil, err
	}
	p.state = StateStaged

	outcome := &Outcome{Workspace: ws}
	if !p.opts.KeepWork && p.opts.WorkDir == "" {
		defer func() {
			_ = ws.Remove()
		}()
	}

	exitCode, err := p.execute(ctx, ws)
	if err != nil {
		return nil, err
	}
	outcome.ExitCode = exitCode
	p.state = StateExecuted

	notesPath, err := p.notesPass(ctx, ws)
	if err != nil {
		return nil, err
	}
	p.state = StateNotated

	doc, err := p.aggregate(ws, exitCode, notesPath)
	if err != nil {
		return nil, err
	}
	outcome.Document = doc
	p.state = StateAggregated

	if p.opts.CopyResultTo != "" {
		if err := doc.Save(p.opts.CopyResultTo); err != nil {
			return nil, err
		}
	}

	if err := p.reconcile(ws, outcome); err != nil {
		return nil, err
	}
	if outcome.Compared {
		p.state = StateDone
	}

	return outcome, nil
}

func (p *Pipeline) stage(ctx context.Context) (*workspace.Workspace, error) {
	targetDir := p.cfg.TargetDir
	if targetDir == "" {
		targetDir = p.cfg.Suite.Directory
	}

	overlayDir := ""
	if p.cfg.OverlayEnabled() {
		overlayDir = p.cfg.OverlayDir
	}

	if util.IsVerbose(ctx) {
		fmt.Printf("Staging '%s' into workspace\n", p.submission)
	}

	return workspace.Stage(p.submission, workspace.StageOptions{
		Root:       p.opts.WorkDir,
		OutputDir:  p.opts.OutputDir,
		TargetDir:  targetDir,
		OverlayDir: overlayDir,
	})
}

func (p *Pipeline) execute(ctx context.Context, ws *workspace.Workspace) (int, error) {
	spec := runner.Spec{
		Command: p.run.Command,
		Dir:     ws.Root,
		Attach:  p.run.Interactive,
		Env:     []string{fmt.Sprintf("%s=%s", workspace.EnvOutputDir, ws.OutputDir)},
	}
	if !p.run.Interactive {
		spec.LogPath = ws.LogPath()
	}

	if util.IsVerbose(ctx) {
		fmt.Printf("Running '%s' (%s)\n", p.runnerName, p.run.Command)
	}

	return runner.Execute(ctx, spec)
}

func (p *Pipeline) notesPass(ctx context.Context, ws *workspace.Workspace) (string, error) {
	// Interactive runs produce no log, so there is nothing to hand the tool.
	if p.run.Interactive {
		return "", nil
	}

	tool := p.opts.NotesTool
	if tool == nil {
		tool = notes.ExecTool{}
	}
	return notes.Pass(ctx, tool, p.cfg, p.run, ws.LogPath(), ws.NotesPath())
}

func (p *Pipeline) aggregate(ws *workspace.Workspace, exitCode int, notesPath string) (*results.Document, error) {
	agg := results.Aggregator{
		RunnerResultsPath: ws.RunnerResultsPath(),
		LogPath:           ws.LogPath(),
		NotesPath:         notesPath,
		FinalPath:         ws.FinalResultsPath(),
		Grades:            p.cfg.Suite.Grades,
	}
	return agg.Aggregate(exitCode)
}

// reconcile performs the Aggregated → Compared transition when a baseline
// exists and the caller did not skip the check; otherwise the verdict is
// exit-code success.
func (p *Pipeline) reconcile(ws *workspace.Workspace, outcome *Outcome) error {
	outcome.Verdict = outcome.ExitCode == 0

	if p.opts.SkipCheck {
		return nil
	}

	outcome.BaselinePath = p.opts.BaselinePath
	if outcome.BaselinePath == "" {
		outcome.BaselinePath = filepath.Join(
			p.cfg.ExpectedDir, filepath.Base(p.submission), p.runnerName+".json")
	}

	if p.opts.SaveBaseline {
		if err := os.MkdirAll(filepath.Dir(outcome.BaselinePath), 0o755); err != nil {
			return fmt.Errorf("failed to create baseline dir: %w", err)
		}
		if err := outcome.Document.Save(outcome.BaselinePath); err != nil {
			return err
		}
		outcome.BaselineSaved = true
		return nil
	}

	if _, err := os.Stat(outcome.BaselinePath); err != nil {
		outcome.BaselineMissing = true
		return nil
	}

	comparison, err := compare.Files(ws.FinalResultsPath(), outcome.BaselinePath)
	if err != nil {
		return err
	}
	outcome.Comparison = comparison
	outcome.Compared = true
	outcome.Verdict = comparison.Passed
	p.state = StateCompared

	return nil
}
