package observability_test

import (
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/lavoiems/solo-learn/internal/observability"
)

type AferoFs struct {
	Afs afero.Fs
}

func (afs AferoFs) MkdirAll(path string, perm os.FileMode) error {
	return afs.Afs.MkdirAll(path, perm)
}

func (afs AferoFs) OpenFile(name string, flag int, perm os.FileMode) (fs.File, error) {
	return afs.Afs.OpenFile(name, flag, perm)
}

func TestGetLoggerPath(t *testing.T) {
	fileSystem := AferoFs{Afs: afero.NewMemMapFs()}

	os.Setenv("SOLOLAUNCH_CACHE_DIR", "/tmp/solo-learn")
	defer os.Unsetenv("SOLOLAUNCH_CACHE_DIR")

	file, err := observability.GetLoggerPathFS(fileSystem)
	assert.NoError(t, err)
	assert.NotNil(t, file)

	// Type assert to afero.File to access the Name method
	aferoFile, ok := file.(afero.File)
	assert.True(t, ok, "File should be of type afero.File")
	assert.True(t, strings.HasPrefix(aferoFile.Name(), "/tmp/solo-learn/logs/launch-"))

	assert.NoError(t, aferoFile.Close())
}
