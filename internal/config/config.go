package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/neurender/neurender/internal/types"
	"gopkg.in/yaml.v3"
)

const (
	defaultRegion      = "us-east-1"
	defaultWorkerCount = 8
	defaultToolsRoot   = "~/.neurender/tools"
	defaultCacheDir    = "~/.neurender/projects"
	defaultLogLevel    = "info"
	defaultLogFormat   = "console"
)

// Load reads and validates configuration from the specified path.
// Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*types.Config, error) {
	expandedPath, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", expandedPath, err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates configuration from raw YAML.
func Parse(data []byte) (*types.Config, error) {
	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to path as YAML, creating parent directories.
func Save(path string, cfg *types.Config) error {
	expandedPath, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expanding config path: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Credentials may live in this file.
	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", expandedPath, err)
	}

	return nil
}

// SetAll replaces the config file at path with the given YAML document.
// The document is validated before anything is written.
func SetAll(path, document string) (*types.Config, error) {
	if strings.TrimSpace(document) == "" {
		return nil, errors.New("config document is empty")
	}

	cfg, err := Parse([]byte(document))
	if err != nil {
		return nil, err
	}

	if err := Save(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

const starterConfig = `# neurender configuration
storage:
  s3:
    # endpoint: https://s3.us-west-1.wasabisys.com
    region: us-east-1
    # force_path_style: true
    worker_count: 8

auth:
  # profile: default
  # access_key_id: YOUR-ACCESS-KEY
  # secret_access_key: YOUR-SECRET-KEY

paths:
  tools_root: ~/.neurender/tools
  cache_dir: ~/.neurender/projects

log:
  level: info
  format: console
`

// CreateStarterConfig writes a commented starter config to path.
// It refuses to overwrite an existing file.
func CreateStarterConfig(path string) error {
	expandedPath, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expanding config path: %w", err)
	}

	if _, err := os.Stat(expandedPath); err == nil {
		return fmt.Errorf("config file already exists: %s", expandedPath)
	}

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(expandedPath, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("writing starter config: %w", err)
	}

	return nil
}

// applyDefaults sets default values for optional config fields.
func applyDefaults(cfg *types.Config) error {
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = defaultRegion
	}

	if cfg.Storage.S3.WorkerCount == 0 {
		cfg.Storage.S3.WorkerCount = defaultWorkerCount
	}

	if cfg.Paths.ToolsRoot == "" {
		cfg.Paths.ToolsRoot = defaultToolsRoot
	}
	toolsRoot, err := homedir.Expand(cfg.Paths.ToolsRoot)
	if err != nil {
		return fmt.Errorf("expanding tools_root: %w", err)
	}
	cfg.Paths.ToolsRoot = toolsRoot

	if cfg.Paths.CacheDir == "" {
		cfg.Paths.CacheDir = defaultCacheDir
	}
	cacheDir, err := homedir.Expand(cfg.Paths.CacheDir)
	if err != nil {
		return fmt.Errorf("expanding cache_dir: %w", err)
	}
	cfg.Paths.CacheDir = cacheDir

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}

	return nil
}

// validate ensures config fields are present and valid.
func validate(cfg *types.Config) error {
	if cfg.Storage.S3.WorkerCount < 0 {
		return fmt.Errorf("storage.s3.worker_count must be positive, got %d", cfg.Storage.S3.WorkerCount)
	}

	if cfg.Auth.AccessKeyID != "" && cfg.Auth.SecretAccessKey == "" {
		return errors.New("auth.secret_access_key is required when auth.access_key_id is set")
	}

	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format)
	}

	return nil
}
