// Package cli wires the checkoff command line.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classkit/checkoff/pkg/compare"
	"github.com/classkit/checkoff/pkg/config"
	"github.com/classkit/checkoff/pkg/pipeline"
	"github.com/classkit/checkoff/pkg/results"
	"github.com/classkit/checkoff/pkg/util"
)

// ErrRunFailed is the terminal failure of a checkoff run: the command exits
// nonzero but the diagnostics were already displayed.
var ErrRunFailed = errors.New("checkoff failed")

// runFlags collects everything configurable about one invocation.
type runFlags struct {
	verbose      bool
	configPath   string
	suitePath    string
	noOverlay    bool
	workDir      string
	outputDir    string
	keepWork     bool
	noCheck      bool
	baseline     string
	saveBaseline bool
	resultTo     string
}

// NewRootCmd creates the root checkoff command. The root command IS the run
// command; show and compare are auxiliary subcommands.
func NewRootCmd() *cobra.Command {
	var flags runFlags

	rootCmd := &cobra.Command{
		Use:   "checkoff <submission-dir> <command>",
		Short: "Run a grading command against a submission",
		Long: `checkoff stages a student submission into a scratch workspace, runs the
configured grading command in it, normalizes the output into a result
document, and checks the document against the recorded expected results.

Use "list" as the command to see what the suite configures.`,
		Example: `  checkoff ./submissions/alice build
  checkoff ./submissions/alice test --save-baseline
  checkoff ./submissions/alice list`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckoff(cmd, args[0], args[1], flags)
		},
	}

	rootCmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "Run configuration file, or a directory to start discovery from (default: the working directory)")
	rootCmd.Flags().StringVar(&flags.suitePath, "suite", "", "Suite configuration file (overrides the run configuration)")
	rootCmd.Flags().BoolVar(&flags.noOverlay, "no-overlay", false, "Skip the grading overlay when staging")
	rootCmd.Flags().StringVar(&flags.workDir, "work-dir", "", "Workspace root (default: a reset scratch directory)")
	rootCmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Directory for run artifacts (default: <workspace>/output)")
	rootCmd.Flags().BoolVar(&flags.keepWork, "keep-work", false, "Keep the workspace after the run")
	rootCmd.Flags().BoolVar(&flags.noCheck, "no-check", false, "Skip the expected-results check; verdict is the exit code")
	rootCmd.Flags().StringVar(&flags.baseline, "baseline", "", "Expected-results file (overrides the per-submission convention)")
	rootCmd.Flags().BoolVar(&flags.saveBaseline, "save-baseline", false, "Record this run's results as the new expected results")
	rootCmd.Flags().StringVar(&flags.resultTo, "result-to", "", "Also copy the final result document to this path")

	rootCmd.AddCommand(NewShowCmd())
	rootCmd.AddCommand(NewCompareCmd())

	return rootCmd
}

func runCheckoff(cmd *cobra.Command, submissionDir, command string, flags runFlags) error {
	cfg, err := loadRunConfig(flags)
	if err != nil {
		return err
	}

	display := newResultDisplay(cmd.OutOrStdout())

	// Listing always exits nonzero: a list request is never a passing run.
	if command == "list" {
		display.printRunnerList(cfg.Suite)
		return ErrRunFailed
	}

	if flags.noOverlay {
		cfg.DisableOverlay()
	}

	p, err := pipeline.New(cfg, submissionDir, command, pipeline.Options{
		WorkDir:      flags.workDir,
		OutputDir:    flags.outputDir,
		KeepWork:     flags.keepWork,
		SkipCheck:    flags.noCheck,
		BaselinePath: flags.baseline,
		SaveBaseline: flags.saveBaseline,
		CopyResultTo: flags.resultTo,
	})
	if errors.Is(err, config.ErrUnknownRunner) {
		display.printRunnerList(cfg.Suite)
		return fmt.Errorf("unknown command '%s'", command)
	}
	if err != nil {
		return err
	}

	ctx := util.WithOptions(cmd.Context(), util.RunOptions{Verbose: flags.verbose})

	outcome, err := p.Run(ctx)
	if err != nil {
		return err
	}

	display.printOutcome(outcome, flags.verbose)

	if !outcome.Verdict {
		return ErrRunFailed
	}
	return nil
}

// loadRunConfig resolves the run configuration. --config moves the discovery
// start point: a file is loaded directly, a directory is walked upward the
// same way the working directory is. An explicit --suite replaces the
// configured suite file.
func loadRunConfig(flags runFlags) (*config.RunConfig, error) {
	start := flags.configPath
	if start == "" {
		start = "."
	}

	cfg, err := config.Resolve(start)
	if err != nil {
		return nil, err
	}

	if flags.suitePath != "" {
		suite, err := config.ParseSuiteFile(flags.suitePath)
		if err != nil {
			return nil, err
		}
		cfg.SuiteConfig = flags.suitePath
		cfg.Suite = suite
	}

	return cfg, nil
}

// NewShowCmd creates the show command for rendering a persisted result
// document.
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <results-file>",
		Short: "Pretty-print a result document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := results.Load(args[0])
			if err != nil {
				return err
			}

			display := newResultDisplay(cmd.OutOrStdout())
			display.printDocument(doc)
			return nil
		},
	}
}

// NewCompareCmd creates the compare command for checking one persisted
// result document against another.
func NewCompareCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "compare <actual-file> <expected-file>",
		Short: "Compare a result document against expected results",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := compare.Files(args[0], args[1])
			if err != nil {
				return err
			}

			display := newResultDisplay(cmd.OutOrStdout())
			display.printComparison(outcome, verbose)

			if !outcome.Passed {
				return ErrRunFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the full document diff on mismatch")

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
