package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/neurender/neurender/internal/command"
)

// RegisterImages estimates camera poses for the staged images with ns-process-data.
type RegisterImages struct {
	stepBase   `yaml:",inline"`
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`
}

func (s *RegisterImages) Kind() string { return KindRegisterImages }
func (s *RegisterImages) Name() string { return s.nameOr(KindRegisterImages) }

func (s *RegisterImages) DeclaredOutputPath(rc *RunContext) string {
	return rc.Output(s.OutputPath)
}

func (s *RegisterImages) Execute(ctx context.Context, rc *RunContext) error {
	return rc.Runner.Run(ctx, command.Command{
		Program: "ns-process-data",
		Args: []string{
			"images",
			"--data", rc.Output(s.InputPath),
			"--output-dir", rc.Output(s.OutputPath),
		},
		Dir: rc.WorkingPath,
	})
}

// PrepareTrainingData lays out registered images the way the gaussian
// splatting trainer expects them.
type PrepareTrainingData struct {
	stepBase   `yaml:",inline"`
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`
}

func (s *PrepareTrainingData) Kind() string { return KindPrepareTrainingData }
func (s *PrepareTrainingData) Name() string { return s.nameOr(KindPrepareTrainingData) }

func (s *PrepareTrainingData) DeclaredOutputPath(rc *RunContext) string {
	return rc.Output(s.OutputPath)
}

func (s *PrepareTrainingData) Execute(ctx context.Context, rc *RunContext) error {
	src := rc.Output(s.InputPath)
	dst := rc.Output(s.OutputPath)

	for _, dir := range [][2]string{
		{"colmap", "distorted"},
		{"images", "input"},
	} {
		if err := copyTree(rc.Fs, filepath.Join(src, dir[0]), filepath.Join(dst, dir[1])); err != nil {
			return fmt.Errorf("preparing %s: %w", dir[1], err)
		}
	}
	return nil
}

// TrainModel trains a gaussian splatting model with the trainer's train.py.
type TrainModel struct {
	stepBase       `yaml:",inline"`
	SourcePath     string `yaml:"source_path"`
	ModelPath      string `yaml:"model_path"`
	ToolDir        string `yaml:"tool_dir"` // Trainer checkout, relative to the tools root
	Resolution     int    `yaml:"resolution"`
	Iterations     int    `yaml:"iterations"`
	SaveIterations []int  `yaml:"save_iterations"`
}

func (s *TrainModel) Kind() string { return KindTrainModel }
func (s *TrainModel) Name() string { return s.nameOr(KindTrainModel) }

func (s *TrainModel) DeclaredOutputPath(rc *RunContext) string {
	return rc.Output(s.ModelPath)
}

func (s *TrainModel) Execute(ctx context.Context, rc *RunContext) error {
	dir := s.ToolDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(rc.ToolsRoot, dir)
	}

	args := []string{
		"train.py",
		"--source_path", rc.Output(s.SourcePath),
		"--model_path", rc.Output(s.ModelPath),
		"--iterations", strconv.Itoa(s.Iterations),
		"--resolution", strconv.Itoa(s.Resolution),
	}
	if len(s.SaveIterations) > 0 {
		args = append(args, "--save_iterations")
		for _, it := range s.SaveIterations {
			args = append(args, strconv.Itoa(it))
		}
	}

	return rc.Runner.Run(ctx, command.Command{
		Program: "python3",
		Args:    args,
		Dir:     dir,
	})
}

// RunViewer opens a trained model in an interactive viewer. It always runs.
type RunViewer struct {
	stepBase  `yaml:",inline"`
	Program   string   `yaml:"program"`
	ModelPath string   `yaml:"model_path"`
	Args      []string `yaml:"args"`
}

func (s *RunViewer) Kind() string { return KindRunViewer }
func (s *RunViewer) Name() string { return s.nameOr(KindRunViewer) }

func (s *RunViewer) DeclaredOutputPath(*RunContext) string { return "" }

func (s *RunViewer) Execute(ctx context.Context, rc *RunContext) error {
	args := append([]string{"-m", rc.Output(s.ModelPath)}, s.Args...)
	return rc.Runner.Run(ctx, command.Command{
		Program: s.Program,
		Args:    args,
		Dir:     rc.WorkingPath,
	})
}
