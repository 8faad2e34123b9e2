package syncer

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statAt(t *testing.T, modified time.Time) os.FileInfo {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/f", []byte("x"), 0644))
	require.NoError(t, fs.Chtimes("/f", modified, modified))
	info, err := fs.Stat("/f")
	require.NoError(t, err)
	return info
}

func TestPlanDownload(t *testing.T) {
	local := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		remote time.Time
		local  os.FileInfo
		want   Action
		verb   string
	}{
		{
			name:   "no local file",
			remote: local,
			local:  nil,
			want:   Action{Kind: Transfer, Direction: Download, Reason: ReasonNew},
			verb:   "Downloading",
		},
		{
			name:   "remote newer",
			remote: local.Add(time.Second),
			local:  statAt(t, local),
			want:   Action{Kind: Transfer, Direction: Download, Reason: ReasonNewer},
			verb:   "Updating",
		},
		{
			// Equal timestamps skip on download.
			name:   "remote equal",
			remote: local,
			local:  statAt(t, local),
			want:   Action{Kind: Skip, Direction: Download},
			verb:   "Skipping",
		},
		{
			name:   "remote older",
			remote: local.Add(-time.Hour),
			local:  statAt(t, local),
			want:   Action{Kind: Skip, Direction: Download},
			verb:   "Skipping",
		},
		{
			name:   "remote timestamp unknown",
			remote: time.Time{},
			local:  statAt(t, local),
			want:   Action{Kind: Transfer, Direction: Download, Reason: ReasonNewer},
			verb:   "Updating",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := planDownload(tt.remote, tt.local)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.verb, got.Verb())
		})
	}
}

func TestPlanUpload(t *testing.T) {
	local := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		remote time.Time
		exists bool
		want   Action
		verb   string
	}{
		{
			name:   "no remote object",
			exists: false,
			want:   Action{Kind: Transfer, Direction: Upload, Reason: ReasonNew},
			verb:   "Uploading",
		},
		{
			name:   "remote newer",
			remote: local.Add(time.Second),
			exists: true,
			want:   Action{Kind: Skip, Direction: Upload},
			verb:   "Skipping",
		},
		{
			// Ties transfer nothing in either direction.
			name:   "remote equal",
			remote: local,
			exists: true,
			want:   Action{Kind: Skip, Direction: Upload},
			verb:   "Skipping",
		},
		{
			name:   "remote older",
			remote: local.Add(-time.Second),
			exists: true,
			want:   Action{Kind: Transfer, Direction: Upload, Reason: ReasonReplace},
			verb:   "Replacing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := planUpload(tt.remote, tt.exists, local)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.verb, got.Verb())
		})
	}
}
