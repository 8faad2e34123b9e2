package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/neurender/neurender/internal/meta"
	"github.com/spf13/afero"
)

// selectFiles returns the slash-separated paths of regular files below root
// that match pattern. Remote metadata sidecars are never selected.
func selectFiles(fs afero.Fs, root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "**/*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid select pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(fs, root)), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("selecting files in %s: %w", root, err)
	}

	files := matches[:0]
	for _, m := range matches {
		if filepath.Base(m) == meta.FileName {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dst, err)
	}

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

// copyTree copies every file below src into dst, merging with what is there.
func copyTree(fs afero.Fs, src, dst string) error {
	info, err := fs.Stat(src)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", src)
	}

	return afero.Walk(fs, src, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return fs.MkdirAll(target, 0755)
		}
		return copyFile(fs, p, target)
	})
}
