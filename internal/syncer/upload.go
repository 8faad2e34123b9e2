package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/neurender/neurender/internal/logger"
	"github.com/neurender/neurender/internal/meta"
	"github.com/neurender/neurender/internal/storage"
	"github.com/spf13/afero"
)

// ToRemote uploads the files under localPath that match selector to remoteURL.
//
// An empty remoteURL is resolved from the directory's remote metadata; when
// that is missing too the call fails with ErrMissingDestination. Objects
// already at the destination are looked up once before uploading starts, and
// an empty destination prefix is not an error.
func (s *Syncer) ToRemote(ctx context.Context, localPath, remoteURL, selector string) (*Result, error) {
	localPath, err := homedir.Expand(localPath)
	if err != nil {
		return nil, fmt.Errorf("expanding local path: %w", err)
	}

	if remoteURL == "" {
		m, err := meta.Load(s.fs, localPath)
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrMissingDestination, localPath, err)
		}
		remoteURL = m.URL
	}

	bucket, prefix, err := storage.ParseURL(remoteURL)
	if err != nil {
		return nil, err
	}

	match, err := newLocalSelector(selector)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", localPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", localPath)
	}

	existing, err := s.remoteLookup(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("path", localPath).
		Str("bucket", bucket).
		Str("prefix", prefix).
		Int("existing", len(existing)).
		Msg("Syncing local to remote")

	b := s.newBatch()

	walkErr := afero.Walk(s.fs, localPath, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)

		if fi.IsDir() {
			if fi.Name() == meta.InputsDir && rel != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if isLocalOnly(rel) || !match.Match(rel) {
			return nil
		}

		key := path.Join(prefix, rel)
		obj, found := existing[key]
		action := planUpload(obj.LastModified, found, fi.ModTime())

		logger.Log.Info().
			Str("path", p).
			Str("bucket", bucket).
			Str("key", key).
			Stringer("reason", action.Reason).
			Msg(action.Verb())

		if action.Kind == Skip {
			b.skipped()
			return nil
		}

		return b.submit(ctx, TransferTask{
			LocalPath: p,
			Bucket:    bucket,
			Key:       key,
			Direction: Upload,
			Size:      fi.Size(),
		})
	})

	result := b.wait()
	if walkErr != nil {
		return result, fmt.Errorf("walking %s: %w", localPath, walkErr)
	}

	logger.Log.Info().
		Int("transferred", result.Transferred).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Sync to remote complete")

	return result, nil
}

// remoteLookup indexes the objects already stored under prefix by key.
// The map is built before any upload starts and only read afterwards.
func (s *Syncer) remoteLookup(ctx context.Context, bucket, prefix string) (map[string]storage.Object, error) {
	lookup := make(map[string]storage.Object)
	for obj, err := range s.remote.Objects(ctx, bucket, prefix) {
		if err != nil {
			if errors.Is(err, storage.ErrNoRemoteContent) {
				logger.Log.Info().Str("bucket", bucket).Str("prefix", prefix).Msg("No existing remote content")
				break
			}
			return nil, fmt.Errorf("listing existing remote content: %w", err)
		}
		lookup[obj.Key] = obj
	}
	return lookup, nil
}

func (s *Syncer) upload(ctx context.Context, t TransferTask) (int64, error) {
	f, err := s.fs.Open(t.LocalPath)
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Log.Warn().Err(closeErr).Str("path", t.LocalPath).Msg("Closing file failed")
		}
	}()

	size := t.Size
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}

	if err := s.remote.Upload(ctx, t.Bucket, t.Key, f, size); err != nil {
		return 0, err
	}

	return size, nil
}
