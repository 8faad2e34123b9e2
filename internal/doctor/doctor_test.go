package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/neurender/neurender/internal/types"
)

type fakeChecker struct {
	err    error
	bucket string
}

func (f *fakeChecker) CheckBucket(ctx context.Context, bucket string) error {
	f.bucket = bucket
	return f.err
}

func foundAll(program string) (string, error) {
	return "/usr/bin/" + program, nil
}

func foundNone(program string) (string, error) {
	return "", errors.New("executable file not found in $PATH")
}

func newConfig(toolsRoot, cacheDir string) *types.Config {
	return &types.Config{
		Storage: types.StorageConfig{S3: types.S3Config{Region: "us-west-2", WorkerCount: 8}},
		Paths:   types.PathsConfig{ToolsRoot: toolsRoot, CacheDir: cacheDir},
	}
}

func TestRunChecks(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(t *testing.T) (cfg *types.Config, opts Options)
		wantPassed bool
	}{
		{
			name: "valid config with tools and trainer",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				toolsRoot := filepath.Join(tmpDir, "tools")
				trainer := filepath.Join(toolsRoot, "gaussian-splatting")
				if err := os.MkdirAll(trainer, 0755); err != nil {
					t.Fatalf("failed to create trainer dir: %v", err)
				}
				if err := os.WriteFile(filepath.Join(trainer, "train.py"), []byte("print()"), 0644); err != nil {
					t.Fatalf("failed to create train.py: %v", err)
				}
				return newConfig(toolsRoot, filepath.Join(tmpDir, "cache")), Options{LookPath: foundAll}
			},
			wantPassed: true,
		},
		{
			name: "missing external tools only warn",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				return newConfig(tmpDir, filepath.Join(tmpDir, "cache")), Options{LookPath: foundNone}
			},
			wantPassed: true,
		},
		{
			name: "missing tools root",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				return newConfig(filepath.Join(tmpDir, "nonexistent"), filepath.Join(tmpDir, "cache")), Options{LookPath: foundAll}
			},
			wantPassed: false,
		},
		{
			name: "tools root is a file not a directory",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				toolsRoot := filepath.Join(tmpDir, "tools")
				if err := os.WriteFile(toolsRoot, []byte("not a directory"), 0644); err != nil {
					t.Fatalf("failed to create file: %v", err)
				}
				return newConfig(toolsRoot, filepath.Join(tmpDir, "cache")), Options{LookPath: foundAll}
			},
			wantPassed: false,
		},
		{
			name: "cache directory cannot be created",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				blocker := filepath.Join(tmpDir, "blocker")
				if err := os.WriteFile(blocker, []byte("file"), 0644); err != nil {
					t.Fatalf("failed to create file: %v", err)
				}
				return newConfig(tmpDir, filepath.Join(blocker, "cache")), Options{LookPath: foundAll}
			},
			wantPassed: false,
		},
		{
			name: "accessible bucket",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				return newConfig(tmpDir, filepath.Join(tmpDir, "cache")), Options{
					LookPath: foundAll,
					Remote:   "s3://renders/garden",
					Storage:  &fakeChecker{},
				}
			},
			wantPassed: true,
		},
		{
			name: "inaccessible bucket",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				return newConfig(tmpDir, filepath.Join(tmpDir, "cache")), Options{
					LookPath: foundAll,
					Remote:   "s3://renders/garden",
					Storage:  &fakeChecker{err: errors.New("access denied")},
				}
			},
			wantPassed: false,
		},
		{
			name: "invalid remote address",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				return newConfig(tmpDir, filepath.Join(tmpDir, "cache")), Options{
					LookPath: foundAll,
					Remote:   "s3://",
					Storage:  &fakeChecker{},
				}
			},
			wantPassed: false,
		},
		{
			name: "remote without storage client",
			setupFunc: func(t *testing.T) (*types.Config, Options) {
				tmpDir := t.TempDir()
				return newConfig(tmpDir, filepath.Join(tmpDir, "cache")), Options{
					LookPath: foundAll,
					Remote:   "s3://renders/garden",
				}
			},
			wantPassed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, opts := tt.setupFunc(t)
			configPath := filepath.Join(t.TempDir(), "config.yaml")

			got := RunChecks(context.Background(), cfg, configPath, opts)

			if got != tt.wantPassed {
				t.Errorf("RunChecks() = %v, want %v", got, tt.wantPassed)
			}
		})
	}
}

func TestRunChecksProbesConfiguredBucket(t *testing.T) {
	tmpDir := t.TempDir()
	checker := &fakeChecker{}

	RunChecks(context.Background(), newConfig(tmpDir, filepath.Join(tmpDir, "cache")), "config.yaml", Options{
		LookPath: foundAll,
		Remote:   "s3://renders/projects/garden/",
		Storage:  checker,
	})

	if checker.bucket != "renders" {
		t.Errorf("CheckBucket called with %q, want %q", checker.bucket, "renders")
	}
}

func TestCheckDir(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"directory", tmpDir, true},
		{"file", file, false},
		{"missing", filepath.Join(tmpDir, "missing"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkDir("Tools root", tt.path, "paths.tools_root"); got != tt.want {
				t.Errorf("checkDir(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
