// Package stage copies a dataset tree to fast local storage before a run.
package stage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lavoiems/solo-learn/internal/observability"
)

// defaultParallelism bounds concurrent file copies. Staging is I/O bound;
// a small pool keeps shared filesystems happy.
const defaultParallelism = 4

type Stager struct {
	fs          afero.Fs
	logger      *observability.CoreLogger
	parallelism int

	// progress throttles "still copying" log lines.
	progress *rate.Limiter
}

// Result summarizes one staging pass.
type Result struct {
	FilesCopied  int64
	FilesSkipped int64
	BytesCopied  int64
}

func New(fs afero.Fs, logger *observability.CoreLogger) *Stager {
	return &Stager{
		fs:          fs,
		logger:      logger,
		parallelism: defaultParallelism,
		progress:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Stage copies the dataset at src into dst.
//
// It is idempotent: a file whose size and modification time already match
// the source is skipped, so staging the same dataset twice leaves the
// destination in the same observable state as staging it once. Any
// unreadable source path fails the whole pass before the trainer can start.
func (s *Stager) Stage(ctx context.Context, src, dst string) (*Result, error) {
	info, err := s.fs.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("source dataset %s is unreadable: %w", src, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source dataset %s is not a directory", src)
	}

	if err := s.fs.MkdirAll(dst, 0755); err != nil {
		return nil, fmt.Errorf("staging destination %s is unwritable: %w", dst, err)
	}

	result := &Result{}
	var copied, skipped, bytes atomic.Int64

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelism)

	walkErr := afero.Walk(s.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("unable to read %s: %w", path, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			if err := s.fs.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("unable to create %s: %w", target, err)
			}
			return nil
		}

		group.Go(func() error {
			if upToDate(s.fs, target, info) {
				skipped.Add(1)
				return nil
			}
			n, err := s.copyFile(path, target, info)
			if err != nil {
				return err
			}
			copied.Add(1)
			bytes.Add(n)

			if s.progress.Allow() {
				s.logger.Info(
					"stage: copying dataset",
					"copied", copied.Load(),
					"skipped", skipped.Load(),
				)
			}
			return nil
		})
		return nil
	})

	// A failed copy cancels the group context, which also aborts the walk
	// with a bare context error. Report the copy error first so the failure
	// names the offending path.
	if groupErr := group.Wait(); groupErr != nil {
		return nil, groupErr
	}
	if walkErr != nil {
		return nil, walkErr
	}

	result.FilesCopied = copied.Load()
	result.FilesSkipped = skipped.Load()
	result.BytesCopied = bytes.Load()
	return result, nil
}

// upToDate reports whether the staged copy already matches the source file.
func upToDate(fs afero.Fs, target string, src os.FileInfo) bool {
	info, err := fs.Stat(target)
	if err != nil {
		return false
	}
	return info.Size() == src.Size() && info.ModTime().Equal(src.ModTime())
}

func (s *Stager) copyFile(src, dst string, info os.FileInfo) (int64, error) {
	source, err := s.fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("unable to read %s: %w", src, err)
	}
	defer source.Close()

	destination, err := s.fs.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("unable to create %s: %w", dst, err)
	}

	n, err := io.Copy(destination, source)
	if err != nil {
		destination.Close()
		return 0, fmt.Errorf("copy of %s failed: %w", src, err)
	}
	if err := destination.Close(); err != nil {
		return 0, fmt.Errorf("copy of %s failed: %w", src, err)
	}

	// Keep the source mtime so that the next pass can skip this file.
	if err := s.fs.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
		return 0, fmt.Errorf("unable to set times on %s: %w", dst, err)
	}
	return n, nil
}
