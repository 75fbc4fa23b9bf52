package results

import (
	"fmt"
	"os"

	"github.com/classkit/checkoff/pkg/config"
)

// Aggregator normalizes whatever execution produced into one canonical
// Document via a strict three-tier fallback:
//
//  1. a structured result file written by the executed command itself
//  2. the captured log plus the nonzero exit code
//  3. an empty success document carrying just the exit code
//
// Each tier produces a fully valid document; the chain is an explicit
// ordered check, not exception handling.
type Aggregator struct {
	// RunnerResultsPath is the well-known path the executed command writes
	// structured results to.
	RunnerResultsPath string
	// LogPath is the captured run log. May be absent in attached mode.
	LogPath string
	// NotesPath is the grading-notes document; empty when the notes pass
	// was skipped or produced nothing.
	NotesPath string
	// FinalPath is where the aggregated document is persisted.
	FinalPath string
	// Grades is the suite's rubric, attached to the selected document.
	Grades map[string]config.GradeEntry
}

// Aggregate builds, annotates, and persists exactly one Document for the
// run. It never returns zero documents: every degraded state maps onto one
// of the tiers.
func (a Aggregator) Aggregate(exitCode int) (*Document, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}

	doc, err := a.selectTier(exitCode)
	if err != nil {
		return nil, err
	}

	doc.AttachRubric(a.Grades)

	if a.NotesPath != "" {
		if err := doc.MergeNotesFile(a.NotesPath); err != nil {
			return nil, err
		}
	}

	if err := doc.Save(a.FinalPath); err != nil {
		return nil, err
	}

	return doc, nil
}

func (a Aggregator) selectTier(exitCode int) (*Document, error) {
	if fileExists(a.RunnerResultsPath) {
		doc, err := Load(a.RunnerResultsPath)
		if err != nil {
			return nil, err
		}
		doc.ExitCode = exitCode
		return doc, nil
	}

	if exitCode != 0 && fileExists(a.LogPath) {
		return FromLog(a.LogPath, exitCode)
	}

	return New(exitCode), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (a Aggregator) validate() error {
	if a.RunnerResultsPath == "" || a.FinalPath == "" {
		return fmt.Errorf("aggregator needs runner results and final paths")
	}
	return nil
}
