package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrUnknownStepKind is returned when a pipeline names a step kind that does not exist.
var ErrUnknownStepKind = errors.New("unknown step kind")

// Default directories below the working path.
const (
	SrcMediaPath             = "src-media"
	StagedMediaPath          = "staged-media"
	RegisteredMediaPath      = "registered-media"
	RegisteredMediaGSPath    = "registered-media-gaussian-splatting"
	ModelPath                = "model"
	GaussianSplattingToolDir = "gaussian-splatting"
)

// Step is one unit of pipeline work.
type Step interface {
	// Kind is the step's type tag in pipeline files.
	Kind() string
	// Name identifies the step for no-skip matching.
	Name() string
	// DeclaredOutputPath is the path whose existence marks the step as done.
	// An empty path means the step is never skipped.
	DeclaredOutputPath(rc *RunContext) string
	Execute(ctx context.Context, rc *RunContext) error
}

// stepBase holds fields shared by every step kind.
type stepBase struct {
	Label string `yaml:"name,omitempty"`
}

func (b stepBase) nameOr(kind string) string {
	if b.Label != "" {
		return b.Label
	}
	return kind
}

const (
	KindImportImages        = "import-images"
	KindImportVideo         = "import-video"
	KindRegisterImages      = "register-images"
	KindPrepareTrainingData = "prepare-training-data"
	KindTrainModel          = "train-model"
	KindRunViewer           = "run-viewer"
)

// stepKinds maps a kind tag to a constructor returning the step with its defaults.
var stepKinds = map[string]func() Step{
	KindImportImages: func() Step {
		return &ImportImages{InputPath: SrcMediaPath, OutputPath: StagedMediaPath, Select: "**/*", Scaling: 1}
	},
	KindImportVideo: func() Step {
		return &ImportVideo{OutputPath: StagedMediaPath, ExtractionInterval: 1, Downscale: 1}
	},
	KindRegisterImages: func() Step {
		return &RegisterImages{InputPath: StagedMediaPath, OutputPath: RegisteredMediaPath}
	},
	KindPrepareTrainingData: func() Step {
		return &PrepareTrainingData{InputPath: RegisteredMediaPath, OutputPath: RegisteredMediaGSPath}
	},
	KindTrainModel: func() Step {
		return &TrainModel{
			SourcePath:     RegisteredMediaGSPath,
			ModelPath:      ModelPath,
			ToolDir:        GaussianSplattingToolDir,
			Resolution:     1920,
			Iterations:     30_000,
			SaveIterations: []int{7_000, 30_000},
		}
	},
	KindRunViewer: func() Step {
		return &RunViewer{Program: "SIBR_gaussianViewer_app", ModelPath: ModelPath}
	},
}

// Older pipeline files tag steps with type names.
var stepAliases = map[string]string{
	"ImportImageBatch":            KindImportImages,
	"ImportVideoFile":             KindImportVideo,
	"RegisterImages":              KindRegisterImages,
	"SetupGaussianSplattingData":  KindPrepareTrainingData,
	"TrainGaussianSplattingModel": KindTrainModel,
	"RunViewer":                   KindRunViewer,
}

// Kinds lists the known step kind tags in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(stepKinds))
	for k := range stepKinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// NewStep returns a step of the given kind with default parameters.
func NewStep(kind string) (Step, error) {
	if alias, ok := stepAliases[kind]; ok {
		kind = alias
	}
	newStep, ok := stepKinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepKind, kind)
	}
	return newStep(), nil
}

// StepList decodes a YAML sequence of step descriptors. Each descriptor
// carries its kind in the "step" field next to the kind's own parameters.
type StepList []Step

func (l *StepList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: pipeline must be a list of steps", value.Line)
	}

	steps := make(StepList, 0, len(value.Content))
	for i, node := range value.Content {
		var tag struct {
			Step string `yaml:"step"`
		}
		if err := node.Decode(&tag); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if tag.Step == "" {
			return fmt.Errorf("step %d (line %d): missing step kind", i+1, node.Line)
		}

		step, err := NewStep(tag.Step)
		if err != nil {
			return fmt.Errorf("step %d (line %d): %w", i+1, node.Line, err)
		}
		if err := node.Decode(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, tag.Step, err)
		}
		steps = append(steps, step)
	}

	*l = steps
	return nil
}
