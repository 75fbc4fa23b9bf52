package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/classkit/checkoff/pkg/compare"
	"github.com/classkit/checkoff/pkg/config"
	"github.com/classkit/checkoff/pkg/pipeline"
	"github.com/classkit/checkoff/pkg/results"
)

// resultDisplay renders run outcomes, result documents, and baseline
// comparisons for the terminal.
type resultDisplay struct {
	out    io.Writer
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

func newResultDisplay(out io.Writer) *resultDisplay {
	return &resultDisplay{
		out:    out,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		bold:   color.New(color.Bold),
	}
}

// printRunnerList shows the commands the suite configures, using display
// titles where the suite provides them.
func (d *resultDisplay) printRunnerList(suite *config.SuiteConfig) {
	_, _ = d.bold.Fprintf(d.out, "Available commands for %s:\n", suite.Title)
	for _, name := range suite.RunnerNames() {
		r, _ := suite.Runner(name)
		title := r.DisplayTitle
		if title == "" {
			title = r.Title
		}
		if !r.Visible {
			title += " (hidden)"
		}
		fmt.Fprintf(d.out, "  %-12s %s\n", name, title)
	}
}

// printOutcome is the end-of-run report: the document, the baseline
// reconciliation when one happened, and the overall verdict.
func (d *resultDisplay) printOutcome(outcome *pipeline.Outcome, verbose bool) {
	fmt.Fprintln(d.out)
	d.printDocument(outcome.Document)

	switch {
	case outcome.BaselineSaved:
		fmt.Fprintln(d.out)
		_, _ = d.cyan.Fprintf(d.out, "Saved expected results to %s\n", outcome.BaselinePath)
	case outcome.Compared:
		fmt.Fprintln(d.out)
		d.printComparison(outcome.Comparison, verbose)
	case outcome.BaselineMissing:
		fmt.Fprintln(d.out)
		_, _ = d.yellow.Fprintf(d.out, "No expected results at %s, skipping check\n", outcome.BaselinePath)
		fmt.Fprintln(d.out, "Rerun with --save-baseline to record this run as the expected results.")
	}

	fmt.Fprintln(d.out)
	if outcome.Verdict {
		_, _ = d.green.Fprintf(d.out, "Overall: %s\n", d.statusTag(true))
	} else {
		_, _ = d.red.Fprintf(d.out, "Overall: %s\n", d.statusTag(false))
	}
}

// printDocument renders one result document: per-test status lines, the
// tally, and any grading notes.
func (d *resultDisplay) printDocument(doc *results.Document) {
	if len(doc.Tests) == 0 {
		if doc.ExitCode == 0 {
			fmt.Fprintf(d.out, "Command finished with exit code 0 (no per-test results)\n")
		} else {
			_, _ = d.red.Fprintf(d.out, "Command failed with exit code %d\n", doc.ExitCode)
		}
	} else {
		_, _ = d.bold.Fprintln(d.out, "=== Tests ===")
		for i := range doc.Tests {
			t := &doc.Tests[i]
			if t.Passing() {
				_, _ = d.green.Fprintf(d.out, "  %s %s\n", d.statusTag(true), t.Name)
			} else {
				_, _ = d.red.Fprintf(d.out, "  %s %s\n", d.statusTag(false), t.Name)
				if t.Output != "" {
					fmt.Fprintf(d.out, "        %s\n", t.Output)
				}
			}
		}

		passed, _, total := doc.Tally()
		if passed == total {
			_, _ = d.green.Fprintf(d.out, "Passed: %d / %d tests\n", passed, total)
		} else {
			_, _ = d.red.Fprintf(d.out, "Passed: %d / %d tests\n", passed, total)
		}
	}

	d.printGradingNotes(doc)
}

func (d *resultDisplay) printGradingNotes(doc *results.Document) {
	if !doc.HasNotes() {
		return
	}

	specs, err := doc.GradedSpecs()
	if err != nil {
		_, _ = d.yellow.Fprintf(d.out, "Warning: %v\n", err)
		return
	}
	if len(specs) == 0 {
		return
	}

	_, _ = d.bold.Fprintln(d.out, "=== Grading notes ===")
	for _, spec := range specs {
		title := spec.Entry.Title
		if title == "" {
			title = spec.Name
		}
		fmt.Fprintf(d.out, "  %-24s %s\n", title, spec.FormatResult())
	}
}

// printComparison renders one baseline reconciliation.
func (d *resultDisplay) printComparison(outcome *compare.Outcome, verbose bool) {
	_, _ = d.bold.Fprintln(d.out, "=== Expected results check ===")

	if outcome.NoResults {
		_, _ = d.red.Fprintf(d.out, "%s %s\n", d.statusTag(false), outcome.Reason)
		return
	}

	for i := range outcome.Tests {
		t := &outcome.Tests[i]
		if t.Passing() {
			_, _ = d.green.Fprintf(d.out, "  %s %s\n", d.statusTag(true), t.Name)
			continue
		}
		_, _ = d.red.Fprintf(d.out, "  %s %s (%s)\n", d.statusTag(false), t.Name, t.Reason)
		if verbose && t.Output != "" {
			fmt.Fprintf(d.out, "        %s\n", t.Output)
		}
	}

	matched, _, total := outcome.Tally()
	fmt.Fprintf(d.out, "Matched: %d / %d tests\n", matched, total)

	if outcome.Passed {
		_, _ = d.green.Fprintf(d.out, "Results match expected: %s\n", d.statusTag(true))
	} else {
		_, _ = d.red.Fprintf(d.out, "Results match expected: %s\n", d.statusTag(false))
		if verbose && outcome.Diff != "" {
			fmt.Fprintln(d.out)
			fmt.Fprint(d.out, outcome.Diff)
		}
	}
}

func (d *resultDisplay) statusTag(ok bool) string {
	if ok {
		return "[PASS]"
	}
	return "[FAIL]"
}
