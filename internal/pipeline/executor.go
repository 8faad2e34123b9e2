// Package pipeline runs ordered sequences of processing steps for a project.
//
// Steps run one at a time in declared order. A step whose declared output
// already exists is skipped unless it is named in the run's no-skip set, so a
// pipeline that stopped part way resumes where it left off. The first failing
// step aborts the run; outputs of earlier steps stay on disk.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/neurender/neurender/internal/logger"
)

// StepState tracks one step through a run.
type StepState int

const (
	StepPending StepState = iota
	StepRunning
	StepCompleted
	StepSkipped
	StepFailed
)

func (s StepState) String() string {
	switch s {
	case StepRunning:
		return "running"
	case StepCompleted:
		return "completed"
	case StepSkipped:
		return "skipped"
	case StepFailed:
		return "failed"
	default:
		return "pending"
	}
}

// RunStatus is the outcome of a whole run.
type RunStatus int

const (
	RunRunning RunStatus = iota
	RunCompleted
	RunAborted
)

func (s RunStatus) String() string {
	switch s {
	case RunCompleted:
		return "completed"
	case RunAborted:
		return "aborted"
	default:
		return "running"
	}
}

// StepResult records what happened to one step.
type StepResult struct {
	Index    int
	Kind     string
	Name     string
	Output   string
	State    StepState
	Duration time.Duration
	Err      error
}

// Report summarizes a run.
type Report struct {
	Pipeline    string
	WorkingPath string // Output root used by the run, for chaining into an upload
	Status      RunStatus
	Steps       []StepResult
}

// StepError wraps the failure that aborted a run.
type StepError struct {
	Index int
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Executor runs pipelines.
type Executor struct {
	// OnStep, if set, is called each time a step changes state.
	OnStep func(StepResult)
}

func (e *Executor) notify(r StepResult) {
	if e != nil && e.OnStep != nil {
		e.OnStep(r)
	}
}

// Plan reports what Run would do with p against rc without executing
// anything. Steps whose output exists are marked skipped, the rest pending.
func Plan(p *Pipeline, rc RunContext) (*Report, error) {
	run, err := rc.resolve()
	if err != nil {
		return nil, err
	}

	report := &Report{Pipeline: p.Name, WorkingPath: run.WorkingPath, Status: RunRunning}
	for i, step := range p.Steps {
		r := StepResult{
			Index:  i,
			Kind:   step.Kind(),
			Name:   step.Name(),
			Output: step.DeclaredOutputPath(run),
			State:  StepPending,
		}
		if ShouldSkip(run, r.Name, r.Output) {
			r.State = StepSkipped
		}
		report.Steps = append(report.Steps, r)
	}
	return report, nil
}

// Run executes the steps of p in order against rc.
// The returned report is never nil once rc is valid, even when the run aborts.
func (e *Executor) Run(ctx context.Context, p *Pipeline, rc RunContext) (*Report, error) {
	run, err := rc.resolve()
	if err != nil {
		return nil, err
	}

	report := &Report{
		Pipeline:    p.Name,
		WorkingPath: run.WorkingPath,
		Status:      RunRunning,
		Steps:       make([]StepResult, len(p.Steps)),
	}
	for i, step := range p.Steps {
		report.Steps[i] = StepResult{
			Index:  i,
			Kind:   step.Kind(),
			Name:   step.Name(),
			Output: step.DeclaredOutputPath(run),
			State:  StepPending,
		}
	}

	if err := run.Fs.MkdirAll(run.WorkingPath, 0755); err != nil {
		report.Status = RunAborted
		return report, fmt.Errorf("creating working path: %w", err)
	}

	logger.Log.Info().
		Str("pipeline", p.Name).
		Str("project", run.ProjectPath).
		Str("path", run.WorkingPath).
		Int("steps", len(p.Steps)).
		Msg("Running pipeline")

	for i, step := range p.Steps {
		r := &report.Steps[i]

		if err := ctx.Err(); err != nil {
			report.Status = RunAborted
			return report, &StepError{Index: i, Step: r.Name, Err: err}
		}

		if ShouldSkip(run, r.Name, r.Output) {
			r.State = StepSkipped
			logger.Log.Info().Str("step", r.Name).Str("path", r.Output).Msg("Skipping step, output exists")
			e.notify(*r)
			continue
		}

		r.State = StepRunning
		logger.Log.Info().Str("step", r.Name).Str("kind", r.Kind).Msg("Running step")
		e.notify(*r)

		start := time.Now()
		err := step.Execute(ctx, run)
		r.Duration = time.Since(start)

		if err != nil {
			r.State = StepFailed
			r.Err = err
			report.Status = RunAborted
			logger.Log.Error().Err(err).Str("step", r.Name).Msg("Step failed, aborting pipeline")
			e.notify(*r)
			return report, &StepError{Index: i, Step: r.Name, Err: err}
		}

		r.State = StepCompleted
		logger.Log.Info().Str("step", r.Name).Dur("duration", r.Duration).Msg("Step completed")
		e.notify(*r)
	}

	report.Status = RunCompleted
	return report, nil
}
