package runmeta_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavoiems/solo-learn/internal/runmeta"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run", "launch-metadata.json")

	meta := runmeta.Collect()
	meta.RunName = "sdbyol-cifar100-abc123"
	meta.Method = "sdbyol"
	meta.Dataset = "cifar100"
	meta.Argv = []string{"--dataset", "cifar100", "--voc_size", "13", "--message_size", "5000"}

	require.NoError(t, meta.Write(path))

	loaded, err := runmeta.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "sdbyol-cifar100-abc123", loaded.RunName)
	assert.Equal(t, meta.Argv, loaded.Argv)
	assert.Equal(t, meta.OS, loaded.OS)
}

func TestReadMissingFile(t *testing.T) {
	_, err := runmeta.Read(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestReadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := runmeta.Read(path)
	assert.Error(t, err)
}
