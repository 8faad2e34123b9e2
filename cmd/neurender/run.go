package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/neurender/neurender/internal/command"
	"github.com/neurender/neurender/internal/logger"
	"github.com/neurender/neurender/internal/output"
	"github.com/neurender/neurender/internal/pipeline"
	"github.com/neurender/neurender/internal/storage"
	"github.com/neurender/neurender/internal/syncer"
	"github.com/neurender/neurender/internal/types"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// uploadToOrigin is the value of a bare --upload flag.
const uploadToOrigin = "origin"

// runsDir holds the working directories created by --fresh.
const runsDir = "runs"

// Runners for step commands and the --on-finished hook. Tests replace them.
var (
	stepRunner command.Runner = command.NewExecRunner()
	hookRunner command.Runner = command.NewExecRunner()
)

var (
	pipelineName string
	outputPath   string
	fresh        bool
	noSkip       []string
	uploadURL    string
	uploadSelect string
	onFinished   string
	dryRun       bool
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run <project>",
	Short: "Run a project pipeline",
	Long: `Runs one pipeline of a project. The project is a local directory or file, or
an s3:// address that is first synced into the cache directory.

Steps run in order. A step whose output already exists is skipped unless it is
named with --no-skip; the first failing step stops the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		s := lazySyncer(ctx, cfg)

		project, origin, err := openProject(ctx, cfg, s, args[0])
		if err != nil {
			return err
		}

		p, err := project.Pipeline(pipelineName)
		if err != nil {
			return err
		}

		working := workingPath(project.Path, outputPath, fresh, uuid.NewString())
		rc := pipeline.RunContext{
			ProjectPath: project.Path,
			WorkingPath: working,
			NoSkip:      pipeline.NoSkipSet(noSkip),
			ToolsRoot:   cfg.Paths.ToolsRoot,
			Runner:      stepRunner,
			Sync:        s,
		}

		if dryRun {
			plan, err := pipeline.Plan(p, rc)
			if err != nil {
				return err
			}
			output.PrintPipeline(plan)
			return nil
		}

		report, runErr := (&pipeline.Executor{}).Run(ctx, p, rc)
		if report != nil {
			if runJSON {
				if err := output.PrintReportJSON(report); err != nil {
					return fmt.Errorf("printing JSON output: %w", err)
				}
			} else {
				output.PrintReport(report)
			}
		}

		if runErr == nil && cmd.Flags().Changed("upload") {
			dest := uploadDestination(uploadURL, origin, project.Path, report.WorkingPath)
			result, err := s.ToRemote(ctx, report.WorkingPath, dest, uploadSelect)
			if err != nil {
				runErr = fmt.Errorf("uploading results: %w", err)
			} else {
				reportSync(syncer.Upload, result)
			}
		}

		if onFinished != "" {
			runHook(ctx, onFinished, report, runErr)
		}

		return runErr
	},
}

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines <project>",
	Short: "List the pipelines of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s := lazySyncer(cmd.Context(), cfg)

		project, _, err := openProject(cmd.Context(), cfg, s, args[0])
		if err != nil {
			return err
		}

		output.PrintPipelines(project)
		return nil
	},
}

// lazyRemote defers building the storage client until a remote address is
// actually used, so purely local runs work without credentials.
type lazyRemote struct {
	ctx  context.Context
	cfg  *types.Config
	once sync.Once
	r    remote
	err  error
}

func (l *lazyRemote) get() (remote, error) {
	l.once.Do(func() {
		l.r, l.err = newRemote(l.ctx, l.cfg)
	})
	return l.r, l.err
}

func (l *lazyRemote) Objects(ctx context.Context, bucket, prefix string) iter.Seq2[storage.Object, error] {
	r, err := l.get()
	if err != nil {
		return func(yield func(storage.Object, error) bool) {
			yield(storage.Object{}, err)
		}
	}
	return r.Objects(ctx, bucket, prefix)
}

func (l *lazyRemote) Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error) {
	r, err := l.get()
	if err != nil {
		return 0, err
	}
	return r.Download(ctx, bucket, key, w)
}

func (l *lazyRemote) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	r, err := l.get()
	if err != nil {
		return err
	}
	return r.Upload(ctx, bucket, key, body, size)
}

func lazySyncer(ctx context.Context, cfg *types.Config) *syncer.Syncer {
	return syncer.New(&lazyRemote{ctx: ctx, cfg: cfg}, syncer.Options{Workers: cfg.Storage.S3.WorkerCount})
}

// openProject loads a local project, first syncing it into the cache
// directory when arg is a remote address. origin is that address, or empty.
func openProject(ctx context.Context, cfg *types.Config, s *syncer.Syncer, arg string) (*pipeline.Project, string, error) {
	path, origin := arg, ""
	if storage.IsRemote(arg) {
		name, err := storage.BaseName(arg)
		if err != nil {
			return nil, "", err
		}
		path = filepath.Join(cfg.Paths.CacheDir, name)
		origin = arg

		result, err := s.ToLocal(ctx, arg, path, "")
		if err != nil {
			return nil, "", fmt.Errorf("fetching project %s: %w", arg, err)
		}
		logger.Log.Info().
			Str("project", arg).
			Str("path", path).
			Int("transferred", result.Transferred).
			Int("skipped", result.Skipped).
			Msg("Project synced")
	}

	project, err := pipeline.LoadProject(afero.NewOsFs(), path)
	if err != nil {
		return nil, "", err
	}
	return project, origin, nil
}

// workingPath picks the output root of a run. Fresh runs get their own
// directory named after the first eight characters of id.
func workingPath(projectPath, outputDir string, fresh bool, id string) string {
	base := projectPath
	if outputDir != "" {
		base = outputDir
	}
	if !fresh {
		return base
	}
	if outputDir == "" {
		base = filepath.Join(base, runsDir)
	}
	return filepath.Join(base, id[:8])
}

// uploadDestination resolves where run results are uploaded. An explicit
// address wins. Otherwise a run inside a remote project goes to the matching
// place below the project's origin. An empty result defers to the working
// directory's remote metadata.
func uploadDestination(explicit, origin, projectPath, working string) string {
	if explicit != "" && explicit != uploadToOrigin {
		return explicit
	}
	if origin == "" {
		return ""
	}
	rel, err := filepath.Rel(projectPath, working)
	if err != nil || !filepath.IsLocal(rel) {
		return ""
	}
	if rel == "." {
		return origin
	}
	return strings.TrimSuffix(origin, "/") + "/" + filepath.ToSlash(rel)
}

// runHook runs the --on-finished command through the shell. Its failure is
// logged and never replaces the outcome of the run.
func runHook(ctx context.Context, script string, report *pipeline.Report, runErr error) {
	status := "completed"
	if runErr != nil {
		status = "failed"
	}

	c := command.Command{
		Program: "sh",
		Args:    []string{"-c", script},
		Env:     map[string]string{"NEURENDER_STATUS": status},
	}
	if report != nil {
		c.Dir = report.WorkingPath
		c.Env["NEURENDER_PIPELINE"] = report.Pipeline
		c.Env["NEURENDER_OUTPUT"] = report.WorkingPath
	}

	if err := hookRunner.Run(ctx, c); err != nil {
		logger.Log.Warn().Err(err).Str("command", script).Msg("On-finished command failed")
	}
}

func init() {
	runCmd.Flags().StringVarP(&pipelineName, "pipeline", "p", "", "pipeline to run (default: the only one, or \"default\")")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "working directory for outputs (default: the project directory)")
	runCmd.Flags().BoolVar(&fresh, "fresh", false, "write outputs to a new unique directory")
	runCmd.Flags().StringSliceVar(&noSkip, "no-skip", nil, "steps to run even if their output exists")
	runCmd.Flags().StringVar(&uploadURL, "upload", "", "upload the outputs after a successful run (default: the project's origin)")
	runCmd.Flags().Lookup("upload").NoOptDefVal = uploadToOrigin
	runCmd.Flags().StringVar(&uploadSelect, "upload-select", syncer.SelectAll, "glob selecting which outputs to upload")
	runCmd.Flags().StringVar(&onFinished, "on-finished", "", "shell command to run when the pipeline finishes")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show which steps would run without running them")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run report as JSON")
}
