package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ProjectFileExt is the extension of single-file project definitions.
const ProjectFileExt = ".nrp"

// ErrPipelineNotFound is returned when a requested pipeline is not defined by the project.
var ErrPipelineNotFound = errors.New("pipeline not found")

// Pipeline is a named, ordered list of steps.
type Pipeline struct {
	Name  string   `yaml:"name"`
	Steps StepList `yaml:"pipeline"`

	File string `yaml:"-"` // Definition file the pipeline was read from
}

// Project is a directory of inputs together with its pipeline definitions.
type Project struct {
	Path      string
	Pipelines []*Pipeline
}

// ParsePipeline decodes a pipeline definition.
func ParsePipeline(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing pipeline: %w", err)
	}
	if len(p.Steps) == 0 {
		return nil, errors.New("pipeline has no steps")
	}
	return &p, nil
}

func loadPipeline(fs afero.Fs, file string) (*Pipeline, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline %s: %w", file, err)
	}

	p, err := ParsePipeline(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	p.File = file
	return p, nil
}

// LoadProject reads the project at path. path may be:
//   - a directory holding pipelines/*.yaml, *.yml or *.nrp files
//   - a single pipeline file, whose directory is the project
//   - a path whose .nrp sibling exists, e.g. "garden" for "garden.nrp"
func LoadProject(fs afero.Fs, path string) (*Project, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}

	info, statErr := fs.Stat(path)
	if statErr == nil && info.IsDir() {
		files, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(fs, path)),
			"pipelines/*.{yaml,yml,nrp}", doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("finding pipelines in %s: %w", path, err)
		}
		if len(files) > 0 {
			slices.Sort(files)
			project := &Project{Path: path}
			for _, f := range files {
				p, err := loadPipeline(fs, filepath.Join(path, filepath.FromSlash(f)))
				if err != nil {
					return nil, err
				}
				project.Pipelines = append(project.Pipelines, p)
			}
			return project, nil
		}
	}

	file := path
	if statErr != nil || info.IsDir() {
		file = strings.TrimSuffix(path, string(filepath.Separator)) + ProjectFileExt
		if ok, _ := afero.Exists(fs, file); !ok {
			return nil, fmt.Errorf("no pipelines found for project %s", path)
		}
	}

	p, err := loadPipeline(fs, file)
	if err != nil {
		return nil, err
	}
	return &Project{Path: filepath.Dir(file), Pipelines: []*Pipeline{p}}, nil
}

// Names lists the project's pipeline names.
func (p *Project) Names() []string {
	names := make([]string, len(p.Pipelines))
	for i, pl := range p.Pipelines {
		names[i] = pl.Name
	}
	return names
}

// Pipeline returns the pipeline called name. An empty name selects the only
// pipeline, or the one called "default".
func (p *Project) Pipeline(name string) (*Pipeline, error) {
	if name == "" {
		if len(p.Pipelines) == 1 {
			return p.Pipelines[0], nil
		}
		name = "default"
	}

	for _, pl := range p.Pipelines {
		if pl.Name == name {
			return pl, nil
		}
	}
	for _, pl := range p.Pipelines {
		base := filepath.Base(pl.File)
		if strings.TrimSuffix(base, filepath.Ext(base)) == name {
			return pl, nil
		}
	}

	return nil, fmt.Errorf("%w: %q (available: %s)", ErrPipelineNotFound, name, strings.Join(p.Names(), ", "))
}
