package meta

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work/garden", 0755))

	require.NoError(t, Save(fs, "/work/garden", Metadata{URL: "s3://bucket/projects/garden"}))

	m, err := Load(fs, "/work/garden")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/projects/garden", m.URL)

	data, err := afero.ReadFile(fs, "/work/garden/.remote.meta")
	require.NoError(t, err)
	assert.Contains(t, string(data), "url: ")
	assert.Contains(t, string(data), "s3://bucket/projects/garden")
}

func TestSaveOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/d", 0755))

	require.NoError(t, Save(fs, "/d", Metadata{URL: "s3://old/prefix"}))
	require.NoError(t, Save(fs, "/d", Metadata{URL: "s3://new/prefix"}))

	m, err := Load(fs, "/d")
	require.NoError(t, err)
	assert.Equal(t, "s3://new/prefix", m.URL)
}

func TestLoadMissing(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, "/nowhere")

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEmptyURL(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/d/.remote.meta", []byte("url: \"\"\n"), 0644))

	_, err := Load(fs, "/d")

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMalformed(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/d/.remote.meta", []byte("url: [unclosed\n"), 0644))

	_, err := Load(fs, "/d")

	require.Error(t, err)
	assert.NotErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "parsing")
}
