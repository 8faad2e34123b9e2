package pipeline

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/neurender/neurender/internal/command"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and emulates the outputs of the external tools.
type fakeRunner struct {
	fs   afero.Fs
	fail map[string]error

	mu    sync.Mutex
	calls []command.Command
}

func newFakeRunner(fs afero.Fs) *fakeRunner {
	return &fakeRunner{fs: fs, fail: make(map[string]error)}
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func (r *fakeRunner) Run(ctx context.Context, c command.Command) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	if err := r.fail[c.Program]; err != nil {
		return err
	}

	switch c.Program {
	case "ns-process-data":
		out := argAfter(c.Args, "--output-dir")
		_ = afero.WriteFile(r.fs, filepath.Join(out, "colmap", "sparse", "0", "cameras.bin"), []byte("cams"), 0644)
		_ = afero.WriteFile(r.fs, filepath.Join(out, "images", "frame_00001.jpg"), []byte("img"), 0644)
	case "python3":
		out := argAfter(c.Args, "--model_path")
		_ = afero.WriteFile(r.fs, filepath.Join(out, "point_cloud", "iteration_7000", "point_cloud.ply"), []byte("ply"), 0644)
	case "ffmpeg":
		out := filepath.Dir(c.Args[len(c.Args)-1])
		_ = afero.WriteFile(r.fs, filepath.Join(out, "frame_00001.jpg"), []byte("frame"), 0644)
	}
	return nil
}

func (r *fakeRunner) programs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		out = append(out, c.Program)
	}
	return out
}

func writeFile(t *testing.T, fs afero.Fs, path, data string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(data), 0644))
}
