package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/neurender/neurender/internal/config"
	"github.com/neurender/neurender/internal/doctor"
	"github.com/neurender/neurender/internal/logger"
	"github.com/neurender/neurender/internal/storage"
	"github.com/neurender/neurender/internal/syncer"
	"github.com/neurender/neurender/internal/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath        string
	defaultConfigPath string
	logLevel          string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "neurender",
	Short:   "Run reconstruction pipelines and sync their data with S3",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Long: `neurender runs image-to-3D reconstruction pipelines over project directories
and keeps project data in sync with S3-compatible storage. Steps whose output
already exists are skipped, so an interrupted run resumes where it stopped.`,
	SilenceUsage: true,
}

// remote is the storage surface the commands use.
type remote interface {
	syncer.Remote
	CheckBucket(ctx context.Context, bucket string) error
}

// newRemote builds the storage client from config. Tests replace it.
var newRemote = func(ctx context.Context, cfg *types.Config) (remote, error) {
	client, err := config.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating S3 client: %w", err)
	}
	return storage.NewS3(client), nil
}

func newSyncer(ctx context.Context, cfg *types.Config) (*syncer.Syncer, error) {
	r, err := newRemote(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return syncer.New(r, syncer.Options{Workers: cfg.Storage.S3.WorkerCount}), nil
}

var setAll string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or replace the configuration",
	Long: `Prints the effective configuration. With --set-all the whole config file is
replaced by the given YAML document after it has been validated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("set-all") {
			if _, err := config.SetAll(configPath, setAll); err != nil {
				return fmt.Errorf("replacing config: %w", err)
			}
			fmt.Printf("Config written to %s\n", configPath)
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		shown := *cfg
		if shown.Auth.SecretAccessKey != "" {
			shown.Auth.SecretAccessKey = "********"
		}
		if shown.Auth.SessionToken != "" {
			shown.Auth.SessionToken = "********"
		}
		data, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		fmt.Printf("# %s\n%s", configPath, data)
		return nil
	},
}

var doctorRemote string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate configuration, external tools and connectivity",
	Long: `Checks that the configuration is valid, the tools root exists and the
external programs used by pipeline steps are installed. With --remote the
bucket of the given address is probed as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts := doctor.Options{Remote: doctorRemote}
		if doctorRemote != "" {
			r, err := newRemote(cmd.Context(), cfg)
			if err != nil {
				logger.Log.Error().Err(err).Msg("Cannot create storage client")
			} else {
				opts.Storage = r
			}
		}

		if !doctor.RunChecks(cmd.Context(), cfg, configPath, opts) {
			exitFunc(1)
		}
		return nil
	},
}

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to get home directory: %v\n", err)
		homeDir = "~"
	}
	defaultConfigPath = filepath.Join(homeDir, ".neurender", "config.yaml")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides log.level in config)")

	configCmd.Flags().StringVar(&setAll, "set-all", "", "replace the whole config with this YAML document")
	doctorCmd.Flags().StringVar(&doctorRemote, "remote", "", "also check access to the bucket of this s3:// address")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pipelinesCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
}

var exitFunc = os.Exit

func loadConfig() (*types.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			isDefaultPath := configPath == defaultConfigPath
			if isDefaultPath {
				if err := config.CreateStarterConfig(configPath); err != nil {
					return nil, fmt.Errorf("creating starter config: %w", err)
				}
				printWelcomeMessage(configPath)
				exitFunc(0)
			}
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger.SetFormat(cfg.Log.Format)
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(level)

	return cfg, nil
}

func printWelcomeMessage(configPath string) {
	fmt.Println("Welcome to neurender!")
	fmt.Println()
	fmt.Printf("A starter configuration file has been created at:\n")
	fmt.Printf("  %s\n", configPath)
	fmt.Println()
	fmt.Println("Please edit this file and configure:")
	fmt.Println("  1. storage.s3.region - Your AWS region")
	fmt.Println("  2. auth.profile - Your AWS profile (or use static credentials)")
	fmt.Println("  3. paths.tools_root - Where gaussian-splatting is checked out")
	fmt.Println()
	fmt.Println("For S3-compatible providers (Wasabi, MinIO, etc.):")
	fmt.Println("  - Set storage.s3.endpoint to your provider's endpoint URL")
	fmt.Println("  - Set storage.s3.force_path_style: true if required")
	fmt.Println()
	fmt.Println("After configuration, run:")
	fmt.Println("  neurender doctor                 # Validate configuration and tools")
	fmt.Println("  neurender sync down s3://b/p     # Fetch a project")
	fmt.Println("  neurender run <project>          # Run its default pipeline")
}
