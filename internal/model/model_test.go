package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logjuicer/logjuicer/internal/apperrors"
	"github.com/logjuicer/logjuicer/internal/index"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	ix := index.New(index.DefaultDim)
	ix.Add([]string{"scheduler", "processing", "event"})
	ix.Add([]string{"kernel", "panic"})

	m := FromIndexes([]string{"audit.log.1"}, map[string]*index.Index{"scheduler": ix})

	dir := t.TempDir()
	path := filepath.Join(dir, "model.cbor")
	require.NoError(t, Save(path, m))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Version, loaded.Version)
	assert.Equal(t, m.Baselines, loaded.Baselines)

	restored := loaded.Indexes()["scheduler"]
	require.NotNil(t, restored)
	assert.Equal(t, ix.RowCount(), restored.RowCount())
	assert.Equal(t, ix.Distance([]string{"scheduler", "processing", "event"}),
		restored.Distance([]string{"scheduler", "processing", "event"}))
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.cbor")
	m := FromIndexes(nil, nil)
	m.Version = CurrentVersion + 1
	require.NoError(t, Save(path, m))

	_, err := Load(path)
	require.Error(t, err)
	var compatErr *apperrors.ModelCompatibilityError
	assert.ErrorAs(t, err, &compatErr)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cbor"))
	assert.Error(t, err)
}
