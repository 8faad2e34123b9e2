// Package syncer reconciles a local directory tree with a remote object
// prefix. Each candidate file is planned as skip or transfer by comparing
// modification times, and transfers run on a bounded worker pool.
//
// A failed transfer is logged and counted but never fails the sync; the file
// is simply missing until the next pass picks it up again.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/neurender/neurender/internal/logger"
	"github.com/neurender/neurender/internal/pool"
	"github.com/neurender/neurender/internal/storage"
	"github.com/spf13/afero"
)

// SelectAll is the selector used when none is given.
const SelectAll = "**/*"

// ErrMissingDestination is returned by ToRemote when no destination was given
// and none can be recovered from the directory's remote metadata.
var ErrMissingDestination = errors.New("no upload destination")

// Remote is the object store surface the planner needs.
type Remote interface {
	Objects(ctx context.Context, bucket, prefix string) iter.Seq2[storage.Object, error]
	Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error)
	Upload(ctx context.Context, bucket, key string, r io.Reader, size int64) error
}

// TransferTask moves one object in one direction.
type TransferTask struct {
	LocalPath    string
	Bucket       string
	Key          string
	Direction    Direction
	LastModified time.Time // Stamped on the local file after a download
	Size         int64
}

// TransferError reports a single failed transfer.
type TransferError struct {
	Task TransferTask
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Task.Direction, storage.FormatURL(e.Task.Bucket, e.Task.Key), e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Result summarizes one sync call.
type Result struct {
	Transferred int   // Files moved successfully
	Skipped     int   // Files already up to date
	Failed      int   // Files that could not be transferred
	Directories int   // Directory markers materialized locally
	Bytes       int64 // Bytes moved by successful transfers
}

// Options configures a Syncer.
type Options struct {
	Workers int      // Concurrent transfers, defaults to pool.DefaultWorkers
	Fs      afero.Fs // Local filesystem, defaults to the OS filesystem
}

// Syncer plans and runs directory syncs against a Remote.
type Syncer struct {
	remote  Remote
	workers int
	fs      afero.Fs
}

// New creates a Syncer.
func New(remote Remote, opts Options) *Syncer {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Workers <= 0 {
		opts.Workers = pool.DefaultWorkers
	}
	return &Syncer{
		remote:  remote,
		workers: opts.Workers,
		fs:      opts.Fs,
	}
}

// batch runs the transfers of one sync call and tallies their outcome.
type batch struct {
	s    *Syncer
	pool *pool.Pool

	mu     sync.Mutex
	result Result
}

func (s *Syncer) newBatch() *batch {
	b := &batch{s: s}
	b.pool = pool.New(s.workers, func(err error) {
		logger.Log.Warn().Err(err).Msg("Transfer failed")
		b.failed()
	})
	return b
}

func (b *batch) submit(ctx context.Context, task TransferTask) error {
	return b.pool.Submit(ctx, pool.TaskFunc(func(ctx context.Context) error {
		var (
			n   int64
			err error
		)
		if task.Direction == Download {
			n, err = b.s.download(ctx, task)
		} else {
			n, err = b.s.upload(ctx, task)
		}
		if err != nil {
			return &TransferError{Task: task, Err: err}
		}

		b.mu.Lock()
		b.result.Transferred++
		b.result.Bytes += n
		b.mu.Unlock()
		return nil
	}))
}

func (b *batch) skipped() {
	b.mu.Lock()
	b.result.Skipped++
	b.mu.Unlock()
}

// failed counts a file that could not be transferred, whether it was
// rejected before submission or its transfer returned an error.
func (b *batch) failed() {
	b.mu.Lock()
	b.result.Failed++
	b.mu.Unlock()
}

func (b *batch) directory() {
	b.mu.Lock()
	b.result.Directories++
	b.mu.Unlock()
}

// wait blocks until every submitted transfer has finished.
func (b *batch) wait() *Result {
	b.pool.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.result
	return &r
}
