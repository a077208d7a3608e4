package observability

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileSystem is the filesystem surface needed to create the debug log.
// It is satisfied by the OS filesystem and by afero in tests.
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	OpenFile(name string, flag int, perm os.FileMode) (fs.File, error)
}

type osFileSystem struct{}

func (osFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (osFileSystem) OpenFile(name string, flag int, perm os.FileMode) (fs.File, error) {
	return os.OpenFile(name, flag, perm)
}

// GetLoggerPathFS creates a timestamped debug log file under the launcher's
// cache directory and returns the open file.
//
// The directory is taken from SOLOLAUNCH_CACHE_DIR if set, falling back to
// the user cache dir.
func GetLoggerPathFS(fileSystem FileSystem) (fs.File, error) {
	cacheDir := os.Getenv("SOLOLAUNCH_CACHE_DIR")
	if cacheDir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("observability: failed to get cache dir: %w", err)
		}
		cacheDir = filepath.Join(userCacheDir, "solo-learn")
	}

	logDir := filepath.Join(cacheDir, "logs")
	if err := fileSystem.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("observability: failed to create log dir: %w", err)
	}

	path := filepath.Join(
		logDir,
		fmt.Sprintf("launch-%s.log", time.Now().Format("20060102_150405")),
	)
	file, err := fileSystem.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to open log file: %w", err)
	}
	return file, nil
}

// GetLoggerPath creates the debug log file on the OS filesystem.
func GetLoggerPath() (*os.File, error) {
	file, err := GetLoggerPathFS(osFileSystem{})
	if err != nil {
		return nil, err
	}
	return file.(*os.File), nil
}
