package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neurender/neurender/internal/command"
	"github.com/neurender/neurender/internal/pipeline"
	"github.com/neurender/neurender/internal/storage"
	"github.com/neurender/neurender/internal/types"
)

const (
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

func checkmark() string {
	return colorGreen + "✓" + colorReset
}

func crossmark() string {
	return colorRed + "✗" + colorReset
}

func warnmark() string {
	return colorYellow + "!" + colorReset
}

// Tool is an external program used by pipeline steps.
type Tool struct {
	Program string
	Step    string // Step kind that runs it
}

// Tools lists the external programs invoked by the built-in steps.
var Tools = []Tool{
	{Program: "ffmpeg", Step: pipeline.KindImportVideo},
	{Program: "ns-process-data", Step: pipeline.KindRegisterImages},
	{Program: "python3", Step: pipeline.KindTrainModel},
}

// BucketChecker probes access to a bucket.
type BucketChecker interface {
	CheckBucket(ctx context.Context, bucket string) error
}

// Options selects the optional checks.
type Options struct {
	Remote   string        // s3:// address whose bucket is probed, skipped when empty
	Storage  BucketChecker // Required when Remote is set
	LookPath func(string) (string, error)
}

// RunChecks performs all doctor checks and returns whether all passed.
// Missing external tools are reported as warnings since only the steps that
// use them need them.
func RunChecks(ctx context.Context, cfg *types.Config, configPath string, opts Options) bool {
	fmt.Println("neurender doctor - Configuration, tools and connectivity check")
	fmt.Println()

	allPassed := true

	fmt.Println("Configuration:")
	fmt.Printf("  %s Config file loaded: %s\n", checkmark(), configPath)
	fmt.Printf("  %s S3 region: %s\n", checkmark(), cfg.Storage.S3.Region)
	if cfg.Storage.S3.Endpoint != "" {
		fmt.Printf("  %s S3 endpoint: %s\n", checkmark(), cfg.Storage.S3.Endpoint)
	}
	fmt.Printf("  %s Transfer workers: %d\n", checkmark(), cfg.Storage.S3.WorkerCount)

	switch {
	case cfg.Auth.AccessKeyID != "":
		fmt.Printf("  %s Credentials: static keys from config\n", checkmark())
	case cfg.Auth.Profile != "":
		fmt.Printf("  %s Credentials: profile %s\n", checkmark(), cfg.Auth.Profile)
	default:
		fmt.Printf("  %s Credentials: default AWS chain\n", checkmark())
	}
	fmt.Println()

	fmt.Println("Local filesystem:")
	if !checkDir("Tools root", cfg.Paths.ToolsRoot, "paths.tools_root") {
		allPassed = false
	} else {
		trainer := filepath.Join(cfg.Paths.ToolsRoot, pipeline.GaussianSplattingToolDir, "train.py")
		if _, err := os.Stat(trainer); err != nil {
			fmt.Printf("  %s Trainer not found: %s\n", warnmark(), trainer)
			fmt.Printf("    → Clone the gaussian-splatting repository into %s\n", cfg.Paths.ToolsRoot)
		} else {
			fmt.Printf("  %s Trainer found: %s\n", checkmark(), trainer)
		}
	}
	if err := os.MkdirAll(cfg.Paths.CacheDir, 0o755); err != nil {
		fmt.Printf("  %s Cache directory is not writable: %s\n", crossmark(), cfg.Paths.CacheDir)
		fmt.Printf("    → Error: %v\n", err)
		allPassed = false
	} else {
		fmt.Printf("  %s Cache directory: %s\n", checkmark(), cfg.Paths.CacheDir)
	}
	fmt.Println()

	fmt.Println("External tools:")
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = command.LookPath
	}
	for _, tool := range Tools {
		path, err := lookPath(tool.Program)
		if err != nil {
			fmt.Printf("  %s %s not found (needed by %s)\n", warnmark(), tool.Program, tool.Step)
			continue
		}
		fmt.Printf("  %s %s: %s\n", checkmark(), tool.Program, path)
	}
	fmt.Println()

	if opts.Remote != "" {
		fmt.Println("Remote storage:")
		if !checkRemote(ctx, opts) {
			allPassed = false
		}
		fmt.Println()
	}

	printSummary(allPassed)
	return allPassed
}

func checkDir(label, path, key string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("  %s %s does not exist: %s\n", crossmark(), label, path)
			fmt.Printf("    → Create the directory or update %s in config\n", key)
			return false
		}
		fmt.Printf("  %s Cannot access %s: %s\n", crossmark(), label, path)
		fmt.Printf("    → Error: %v\n", err)
		return false
	}

	if !info.IsDir() {
		fmt.Printf("  %s %s is not a directory: %s\n", crossmark(), label, path)
		fmt.Printf("    → Ensure %s points to a directory\n", key)
		return false
	}

	fmt.Printf("  %s %s exists: %s\n", checkmark(), label, path)
	return true
}

func checkRemote(ctx context.Context, opts Options) bool {
	bucket, _, err := storage.ParseURL(opts.Remote)
	if err != nil {
		fmt.Printf("  %s Invalid remote address: %v\n", crossmark(), err)
		return false
	}
	if opts.Storage == nil {
		fmt.Printf("  %s No storage client available\n", crossmark())
		return false
	}

	if err := opts.Storage.CheckBucket(ctx, bucket); err != nil {
		fmt.Printf("  %s Bucket %s is not accessible\n", crossmark(), bucket)
		fmt.Printf("    → Error: %v\n", err)
		return false
	}

	fmt.Printf("  %s Bucket accessible: %s\n", checkmark(), bucket)
	return true
}

func printSummary(allPassed bool) {
	if allPassed {
		fmt.Println("All checks passed! Ready to use neurender.")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}
}
