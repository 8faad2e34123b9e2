package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/neurender/neurender/internal/command"
	"github.com/neurender/neurender/internal/syncer"
	"github.com/spf13/afero"
)

// Syncer materializes remote inputs locally.
type Syncer interface {
	ToLocal(ctx context.Context, remoteURL, localPath, selector string) (*syncer.Result, error)
}

// RunContext is shared by every step of one run and is not modified while
// the run is in progress.
type RunContext struct {
	ProjectPath string          // Read-only project inputs
	WorkingPath string          // Output root, defaults to ProjectPath
	NoSkip      map[string]bool // Step names that always execute
	ToolsRoot   string          // External tool checkouts, e.g. gaussian-splatting
	Runner      command.Runner
	Sync        Syncer // Optional, needed only for remote inputs
	Fs          afero.Fs
}

// NoSkipSet builds the no-skip set from a list of step names.
// Entries may themselves be comma-separated.
func NoSkipSet(names []string) map[string]bool {
	set := make(map[string]bool)
	for _, n := range names {
		for part := range strings.SplitSeq(n, ",") {
			if part = strings.TrimSpace(part); part != "" {
				set[part] = true
			}
		}
	}
	return set
}

// resolve returns a copy with absolute paths and defaults filled in.
func (rc RunContext) resolve() (*RunContext, error) {
	if rc.ProjectPath == "" {
		return nil, errors.New("project path is required")
	}

	var err error
	if rc.ProjectPath, err = filepath.Abs(rc.ProjectPath); err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}

	if rc.WorkingPath == "" {
		rc.WorkingPath = rc.ProjectPath
	}
	if rc.WorkingPath, err = filepath.Abs(rc.WorkingPath); err != nil {
		return nil, fmt.Errorf("resolving working path: %w", err)
	}

	if rc.NoSkip == nil {
		rc.NoSkip = map[string]bool{}
	}
	if rc.Runner == nil {
		rc.Runner = command.NewExecRunner()
	}
	if rc.Fs == nil {
		rc.Fs = afero.NewOsFs()
	}

	return &rc, nil
}

// Input resolves p against the project path unless it is absolute.
func (rc *RunContext) Input(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rc.ProjectPath, p)
}

// Output resolves p against the working path unless it is absolute.
func (rc *RunContext) Output(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rc.WorkingPath, p)
}

// ShouldSkip reports whether a step's work can be skipped: its declared output
// exists and its name is not in the no-skip set. Only existence is checked,
// so an interrupted step that left partial output is treated as complete
// unless it is named in the no-skip set.
func ShouldSkip(rc *RunContext, name, outputPath string) bool {
	if outputPath == "" || rc.NoSkip[name] {
		return false
	}
	exists, err := afero.Exists(rc.Fs, outputPath)
	return err == nil && exists
}
