package storage

import (
	"errors"
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{
			name:       "s3 scheme",
			input:      "s3://neurender-src/projects/garden",
			wantBucket: "neurender-src",
			wantPrefix: "projects/garden",
		},
		{
			name:       "s3 scheme with trailing slash",
			input:      "s3://neurender-src/projects/garden/",
			wantBucket: "neurender-src",
			wantPrefix: "projects/garden/",
		},
		{
			name:       "other scheme",
			input:      "https://bucket/key/prefix",
			wantBucket: "bucket",
			wantPrefix: "key/prefix",
		},
		{
			name:       "bare bucket and key",
			input:      "bucket/key/prefix",
			wantBucket: "bucket",
			wantPrefix: "key/prefix",
		},
		{
			name:       "leading slash",
			input:      "/bucket/key",
			wantBucket: "bucket",
			wantPrefix: "key",
		},
		{
			name:       "bucket only",
			input:      "s3://bucket",
			wantBucket: "bucket",
			wantPrefix: "",
		},
		{
			name:       "bare bucket only",
			input:      "bucket",
			wantBucket: "bucket",
			wantPrefix: "",
		},
		{
			name:       "empty host falls back to path",
			input:      "s3:///bucket/key",
			wantBucket: "bucket",
			wantPrefix: "key",
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "scheme without bucket",
			input:   "s3://",
			wantErr: true,
		},
		{
			name:    "slashes only",
			input:   "///",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, prefix, err := ParseURL(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRemoteAddress) {
					t.Fatalf("ParseURL(%q) error = %v, want ErrInvalidRemoteAddress", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURL(%q) unexpected error: %v", tt.input, err)
			}
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if prefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", prefix, tt.wantPrefix)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"s3://bucket/key":  true,
		"s3://bucket":      true,
		"gs://b/k":         true,
		"bucket/key":       false,
		"/abs/path":        false,
		"./rel/path":       false,
		"s3://":            false,
		"dir/with://colon": false,
	}

	for input, want := range tests {
		if got := IsRemote(input); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"s3://bucket/projects/garden":  "garden",
		"s3://bucket/projects/garden/": "garden",
		"s3://bucket":                  "bucket",
		"bucket/key":                   "key",
	}

	for input, want := range tests {
		got, err := BaseName(input)
		if err != nil {
			t.Fatalf("BaseName(%q) error = %v", input, err)
		}
		if got != want {
			t.Errorf("BaseName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatURL(t *testing.T) {
	if got := FormatURL("b", "k/x"); got != "s3://b/k/x" {
		t.Errorf("FormatURL = %q", got)
	}
	if got := FormatURL("b", ""); got != "s3://b" {
		t.Errorf("FormatURL = %q", got)
	}
}
