package storage

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidRemoteAddress is returned when no bucket can be derived from a remote address.
var ErrInvalidRemoteAddress = errors.New("invalid remote address")

// ParseURL splits a remote address into bucket and key prefix.
// Accepted forms:
//
//	s3://bucket/path/to/prefix
//	/bucket/path/to/prefix
//	bucket/path/to/prefix
//
// Without a scheme the bucket is the first path segment.
func ParseURL(raw string) (bucket, prefix string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty address", ErrInvalidRemoteAddress)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", ErrInvalidRemoteAddress, raw, err)
	}

	bucket = u.Host
	prefix = strings.TrimLeft(u.Path, "/")

	if bucket == "" {
		bucket, prefix, _ = strings.Cut(prefix, "/")
	}

	if bucket == "" {
		return "", "", fmt.Errorf("%w: no bucket in %q", ErrInvalidRemoteAddress, raw)
	}

	return bucket, prefix, nil
}

// FormatURL renders bucket and key as an s3:// address.
func FormatURL(bucket, key string) string {
	if key == "" {
		return "s3://" + bucket
	}
	return "s3://" + bucket + "/" + strings.TrimLeft(key, "/")
}

// IsRemote reports whether s carries a URL scheme, e.g. s3://bucket/key.
// Bare bucket/key paths are ambiguous with local paths and are not considered remote.
func IsRemote(s string) bool {
	scheme, rest, ok := strings.Cut(s, "://")
	return ok && scheme != "" && !strings.ContainsAny(scheme, `/\`) && rest != ""
}

// BaseName returns the last path segment of a remote address, or the bucket
// name when the address has no prefix.
func BaseName(raw string) (string, error) {
	bucket, prefix, err := ParseURL(raw)
	if err != nil {
		return "", err
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return bucket, nil
	}
	return path.Base(prefix), nil
}
