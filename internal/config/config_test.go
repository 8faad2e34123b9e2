package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/neurender/neurender/internal/types"
)

func TestLoad(t *testing.T) {
	homeDir, err := homedir.Dir()
	if err != nil {
		t.Fatalf("failed to get home directory: %v", err)
	}

	tests := []struct {
		name     string
		content  string
		wantErr  bool
		errMsg   string
		validate func(*testing.T, *types.Config)
	}{
		{
			name:    "empty config uses defaults",
			content: ``,
			wantErr: false,
			validate: func(t *testing.T, cfg *types.Config) {
				if cfg.Storage.S3.Region != "us-east-1" {
					t.Errorf("region = %q, want %q", cfg.Storage.S3.Region, "us-east-1")
				}
				if cfg.Storage.S3.WorkerCount != 8 {
					t.Errorf("worker_count = %d, want 8", cfg.Storage.S3.WorkerCount)
				}
				expectedTools := filepath.Join(homeDir, ".neurender/tools")
				if cfg.Paths.ToolsRoot != expectedTools {
					t.Errorf("tools_root = %q, want %q", cfg.Paths.ToolsRoot, expectedTools)
				}
				expectedCache := filepath.Join(homeDir, ".neurender/projects")
				if cfg.Paths.CacheDir != expectedCache {
					t.Errorf("cache_dir = %q, want %q", cfg.Paths.CacheDir, expectedCache)
				}
				if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
					t.Errorf("log = %+v, want info/console", cfg.Log)
				}
			},
		},
		{
			name: "tilde expansion in paths",
			content: `
paths:
  tools_root: ~/custom/tools
  cache_dir: ~/custom/cache
`,
			wantErr: false,
			validate: func(t *testing.T, cfg *types.Config) {
				expected := filepath.Join(homeDir, "custom/tools")
				if cfg.Paths.ToolsRoot != expected {
					t.Errorf("tools_root = %q, want %q", cfg.Paths.ToolsRoot, expected)
				}
				expected = filepath.Join(homeDir, "custom/cache")
				if cfg.Paths.CacheDir != expected {
					t.Errorf("cache_dir = %q, want %q", cfg.Paths.CacheDir, expected)
				}
			},
		},
		{
			name: "all optional fields",
			content: `
storage:
  s3:
    endpoint: https://s3.example.com
    region: us-west-2
    force_path_style: true
    worker_count: 16
auth:
  profile: custom-profile
  access_key_id: AKIATEST
  secret_access_key: secretkey
  session_token: token123
paths:
  tools_root: /opt/tools
  cache_dir: /var/cache/neurender
log:
  level: debug
  format: json
`,
			wantErr: false,
			validate: func(t *testing.T, cfg *types.Config) {
				if cfg.Storage.S3.Endpoint != "https://s3.example.com" {
					t.Errorf("endpoint = %q, want %q", cfg.Storage.S3.Endpoint, "https://s3.example.com")
				}
				if cfg.Storage.S3.Region != "us-west-2" {
					t.Errorf("region = %q, want %q", cfg.Storage.S3.Region, "us-west-2")
				}
				if !cfg.Storage.S3.ForcePathStyle {
					t.Error("force_path_style = false, want true")
				}
				if cfg.Storage.S3.WorkerCount != 16 {
					t.Errorf("worker_count = %d, want 16", cfg.Storage.S3.WorkerCount)
				}
				if cfg.Auth.Profile != "custom-profile" {
					t.Errorf("profile = %q, want %q", cfg.Auth.Profile, "custom-profile")
				}
				if cfg.Auth.AccessKeyID != "AKIATEST" {
					t.Errorf("access_key_id = %q, want %q", cfg.Auth.AccessKeyID, "AKIATEST")
				}
				if cfg.Paths.ToolsRoot != "/opt/tools" {
					t.Errorf("tools_root = %q, want %q", cfg.Paths.ToolsRoot, "/opt/tools")
				}
				if cfg.Log.Format != "json" {
					t.Errorf("log.format = %q, want json", cfg.Log.Format)
				}
			},
		},
		{
			name: "negative worker count",
			content: `
storage:
  s3:
    worker_count: -2
`,
			wantErr: true,
			errMsg:  "worker_count must be positive",
		},
		{
			name: "access key without secret",
			content: `
auth:
  access_key_id: AKIATEST
`,
			wantErr: true,
			errMsg:  "auth.secret_access_key is required",
		},
		{
			name: "unknown log format",
			content: `
log:
  format: xml
`,
			wantErr: true,
			errMsg:  "log.format must be console or json",
		},
		{
			name:    "invalid YAML",
			content: `invalid: yaml: content:`,
			wantErr: true,
			errMsg:  "parsing config YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() error = nil, want error containing %q", tt.errMsg)
					return
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error = %v", err)
				return
			}

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() error = nil, want error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %q, want error containing 'reading config file'", err.Error())
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist in chain", err)
	}
}

func TestCreateStarterConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := CreateStarterConfig(path); err != nil {
		t.Fatalf("CreateStarterConfig() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("starter config does not load: %v", err)
	}
	if cfg.Storage.S3.WorkerCount != 8 {
		t.Errorf("worker_count = %d, want 8", cfg.Storage.S3.WorkerCount)
	}

	if err := CreateStarterConfig(path); err == nil {
		t.Error("CreateStarterConfig() over existing file error = nil, want error")
	}
}

func TestSetAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	doc := `
storage:
  s3:
    endpoint: https://s3.us-west-1.wasabisys.com
    region: us-west-1
`
	cfg, err := SetAll(path, doc)
	if err != nil {
		t.Fatalf("SetAll() error = %v", err)
	}
	if cfg.Storage.S3.Region != "us-west-1" {
		t.Errorf("region = %q, want us-west-1", cfg.Storage.S3.Region)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after SetAll error = %v", err)
	}
	if reloaded.Storage.S3.Endpoint != "https://s3.us-west-1.wasabisys.com" {
		t.Errorf("endpoint = %q, want wasabi endpoint", reloaded.Storage.S3.Endpoint)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSetAllRejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if _, err := SetAll(path, "   "); err == nil {
		t.Error("SetAll() with empty document error = nil, want error")
	}

	if _, err := SetAll(path, "log:\n  format: xml\n"); err == nil {
		t.Error("SetAll() with invalid document error = nil, want error")
	}

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("config file written despite invalid document: %v", err)
	}
}
