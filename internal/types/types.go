// Package types defines the core data structures used throughout neurender.
// This includes configuration structs shared by the CLI, the sync engine and
// the pipeline runner.
package types

// Config represents the complete configuration for neurender.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Paths   PathsConfig   `yaml:"paths"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig groups remote storage providers. Only S3 is supported.
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible storage settings.
type S3Config struct {
	Endpoint       string `yaml:"endpoint,omitempty"`
	Region         string `yaml:"region"`
	ForcePathStyle bool   `yaml:"force_path_style,omitempty"`
	WorkerCount    int    `yaml:"worker_count"`
}

// AuthConfig holds authentication credentials.
type AuthConfig struct {
	Profile         string `yaml:"profile,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
}

// PathsConfig holds local filesystem locations.
type PathsConfig struct {
	ToolsRoot string `yaml:"tools_root"` // External training code, e.g. gaussian-splatting/
	CacheDir  string `yaml:"cache_dir"`  // Where remote projects are materialized
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
