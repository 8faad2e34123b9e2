package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"github.com/neurender/neurender/internal/command"
	"github.com/neurender/neurender/internal/logger"
	"github.com/neurender/neurender/internal/meta"
	"github.com/neurender/neurender/internal/storage"
)

// localInput returns a local path for a step input. Remote addresses are first
// synced below the working path.
func localInput(ctx context.Context, rc *RunContext, input, selector string) (string, error) {
	if !storage.IsRemote(input) {
		return rc.Input(input), nil
	}
	if rc.Sync == nil {
		return "", fmt.Errorf("remote input %s: no sync engine configured", input)
	}

	name, err := storage.BaseName(input)
	if err != nil {
		return "", err
	}
	local := filepath.Join(rc.WorkingPath, meta.InputsDir, name)

	if _, err := rc.Sync.ToLocal(ctx, input, local, selector); err != nil {
		return "", fmt.Errorf("syncing input %s: %w", input, err)
	}
	return local, nil
}

// ImportImages stages a batch of images, optionally downscaled.
type ImportImages struct {
	stepBase   `yaml:",inline"`
	InputPath  string  `yaml:"input_path"`   // Project-relative directory or remote address
	OutputPath string  `yaml:"output_path"`  // Working-relative directory
	Select     string  `yaml:"select"`       // Glob relative to the input directory
	ScaleToMax float64 `yaml:"scale_to_max"` // Long-edge size in pixels, 0 disables
	Scaling    float64 `yaml:"scaling"`      // Used when ScaleToMax is 0
}

func (s *ImportImages) Kind() string { return KindImportImages }
func (s *ImportImages) Name() string { return s.nameOr(KindImportImages) }

func (s *ImportImages) DeclaredOutputPath(rc *RunContext) string {
	return rc.Output(s.OutputPath)
}

func (s *ImportImages) Execute(ctx context.Context, rc *RunContext) error {
	input := s.InputPath
	selector := s.Select
	if storage.IsRemote(input) {
		// Remote selectors apply to full keys, so fetch everything and select locally.
		selector = ""
	}

	src, err := localInput(ctx, rc, input, selector)
	if err != nil {
		return err
	}
	dst := rc.Output(s.OutputPath)

	info, err := rc.Fs.Stat(src)
	if err != nil {
		return fmt.Errorf("accessing input %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input is not a directory: %s", src)
	}

	files, err := selectFiles(rc.Fs, src, s.Select)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files in %s match %q", src, s.Select)
	}

	if err := rc.Fs.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	resize := s.ScaleToMax > 0 || (s.Scaling > 0 && s.Scaling != 1)
	var copied, scaled int
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		from := filepath.Join(src, filepath.FromSlash(rel))
		to := filepath.Join(dst, filepath.FromSlash(rel))

		if resize {
			done, err := rescaleImage(rc.Fs, from, to, s.ScaleToMax, s.Scaling)
			if err != nil {
				return err
			}
			if done {
				logger.Log.Debug().Str("path", rel).Msg("Rescaled image")
				scaled++
				continue
			}
		}

		if err := copyFile(rc.Fs, from, to); err != nil {
			return err
		}
		copied++
	}

	logger.Log.Info().
		Str("step", s.Name()).
		Int("copied", copied).
		Int("scaled", scaled).
		Str("path", dst).
		Msg("Imported images")

	return nil
}

// ImportVideo extracts frames from a video file with ffmpeg.
type ImportVideo struct {
	stepBase           `yaml:",inline"`
	InputPath          string  `yaml:"input_path"`
	OutputPath         string  `yaml:"output_path"`
	ExtractionInterval int     `yaml:"extraction_interval"` // Keep every Nth frame
	Downscale          float64 `yaml:"downscale"`           // Divide width and height by this factor
}

func (s *ImportVideo) Kind() string { return KindImportVideo }
func (s *ImportVideo) Name() string { return s.nameOr(KindImportVideo) }

func (s *ImportVideo) DeclaredOutputPath(rc *RunContext) string {
	return rc.Output(s.OutputPath)
}

func (s *ImportVideo) Execute(ctx context.Context, rc *RunContext) error {
	if s.InputPath == "" {
		return errors.New("import-video: input_path is required")
	}

	src, err := localInput(ctx, rc, s.InputPath, "")
	if err != nil {
		return err
	}
	if storage.IsRemote(s.InputPath) {
		// A single object syncs to a file of the same name inside the input directory.
		_, key, err := storage.ParseURL(s.InputPath)
		if err != nil {
			return err
		}
		src = filepath.Join(src, path.Base(key))
	}

	dst := rc.Output(s.OutputPath)
	if err := rc.Fs.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	return rc.Runner.Run(ctx, command.Command{
		Program: "ffmpeg",
		Args:    s.ffmpegArgs(src, dst),
		Dir:     rc.WorkingPath,
	})
}

func (s *ImportVideo) ffmpegArgs(src, dst string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", src}

	var filters string
	if s.ExtractionInterval > 1 {
		filters = `select=not(mod(n\,` + strconv.Itoa(s.ExtractionInterval) + `))`
	}
	if s.Downscale > 1 {
		if filters != "" {
			filters += ","
		}
		d := strconv.FormatFloat(s.Downscale, 'g', -1, 64)
		filters += "scale=iw/" + d + ":ih/" + d
	}
	if filters != "" {
		args = append(args, "-vf", filters)
	}

	return append(args, "-vsync", "vfr", "-q:v", "2", filepath.Join(dst, "frame_%05d.jpg"))
}
