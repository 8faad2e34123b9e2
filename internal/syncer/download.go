package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/neurender/neurender/internal/logger"
	"github.com/neurender/neurender/internal/meta"
	"github.com/neurender/neurender/internal/storage"
)

// ToLocal mirrors the objects under remoteURL that match selector into localPath.
//
// An empty localPath defaults to the last segment of the remote address and an
// empty selector to SelectAll. The directory's remote metadata is written
// before any transfer starts. A listing with no objects at all fails with
// storage.ErrNoRemoteContent.
func (s *Syncer) ToLocal(ctx context.Context, remoteURL, localPath, selector string) (*Result, error) {
	bucket, prefix, err := storage.ParseURL(remoteURL)
	if err != nil {
		return nil, err
	}

	if localPath == "" {
		if localPath, err = storage.BaseName(remoteURL); err != nil {
			return nil, err
		}
	}
	localPath, err = homedir.Expand(localPath)
	if err != nil {
		return nil, fmt.Errorf("expanding local path: %w", err)
	}

	match, err := remoteSelector(selector)
	if err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Str("path", localPath).
		Msg("Syncing remote to local")

	if err := s.fs.MkdirAll(localPath, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", localPath, err)
	}
	if err := meta.Save(s.fs, localPath, meta.Metadata{URL: remoteURL}); err != nil {
		return nil, err
	}

	b := s.newBatch()

	var listErr error
	for obj, err := range s.remote.Objects(ctx, bucket, prefix) {
		if err != nil {
			listErr = err
			break
		}

		if !match.Match(obj.Key) {
			continue
		}

		rel, ok := relativeKey(prefix, obj.Key)
		if !ok {
			logger.Log.Warn().Str("key", obj.Key).Msg("Ignoring key outside of sync root")
			continue
		}
		if rel == "" || isSidecar(rel) {
			continue
		}
		target := filepath.Join(localPath, filepath.FromSlash(rel))

		if obj.IsDirMarker {
			if err := s.fs.MkdirAll(target, 0755); err != nil {
				logger.Log.Warn().Err(err).Str("path", target).Msg("Creating directory failed")
				b.failed()
				continue
			}
			b.directory()
			continue
		}

		if err := s.planAndSubmitDownload(ctx, b, bucket, obj, target); err != nil {
			listErr = err
			break
		}
	}

	result := b.wait()
	if listErr != nil {
		return result, listErr
	}

	logger.Log.Info().
		Int("transferred", result.Transferred).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Sync to local complete")

	return result, nil
}

func (s *Syncer) planAndSubmitDownload(ctx context.Context, b *batch, bucket string, obj storage.Object, target string) error {
	info, err := s.fs.Stat(target)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Log.Warn().Err(err).Str("path", target).Msg("Checking local file failed")
		}
		info = nil
	}
	if info != nil && info.IsDir() {
		logger.Log.Warn().Str("key", obj.Key).Str("path", target).Msg("Local directory in the way of remote file")
		b.failed()
		return nil
	}

	action := planDownload(obj.LastModified, info)
	log := logger.Log.Info().
		Str("bucket", bucket).
		Str("key", obj.Key).
		Str("path", target).
		Stringer("reason", action.Reason)

	if action.Kind == Skip {
		log.Msg(action.Verb())
		b.skipped()
		return nil
	}
	log.Msg(action.Verb())

	if err := s.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		logger.Log.Warn().Err(err).Str("path", target).Msg("Creating parent directory failed")
		b.failed()
		return nil
	}

	return b.submit(ctx, TransferTask{
		LocalPath:    target,
		Bucket:       bucket,
		Key:          obj.Key,
		Direction:    Download,
		LastModified: obj.LastModified,
		Size:         obj.Size,
	})
}

// download streams an object into a temporary file next to the target, then
// renames it into place and stamps it with the remote modification time.
func (s *Syncer) download(ctx context.Context, t TransferTask) (int64, error) {
	tmp := filepath.Join(filepath.Dir(t.LocalPath), partName(filepath.Base(t.LocalPath)))

	f, err := s.fs.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", tmp, err)
	}

	n, err := s.remote.Download(ctx, t.Bucket, t.Key, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing %s: %w", tmp, closeErr)
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return n, err
	}

	if err := s.fs.Rename(tmp, t.LocalPath); err != nil {
		_ = s.fs.Remove(tmp)
		return n, fmt.Errorf("moving download into place: %w", err)
	}

	if !t.LastModified.IsZero() {
		if err := s.fs.Chtimes(t.LocalPath, t.LastModified, t.LastModified); err != nil {
			return n, fmt.Errorf("setting modification time: %w", err)
		}
	}

	return n, nil
}

// relativeKey maps an object key to a slash-separated path below the sync
// root. A key equal to the prefix is a single-object sync and maps to its base
// name, and the root's own directory marker maps to "". Keys that are not
// below the prefix at a segment boundary, or that would escape the root, are
// rejected.
func relativeKey(prefix, key string) (string, bool) {
	if key == prefix && !strings.HasSuffix(key, "/") {
		return path.Base(key), true
	}

	root := prefix
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}

	rel, ok := strings.CutPrefix(key, root)
	if !ok {
		return "", false
	}
	rel = strings.TrimSuffix(rel, "/")
	if rel == "" {
		return "", true
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", false
	}
	return rel, true
}
