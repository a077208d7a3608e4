package settings

import (
	"github.com/lavoiems/solo-learn/internal/fileutil"
	"github.com/lavoiems/solo-learn/internal/paths"
)

// This file contains paths derived from the resolved settings.
//
// They are pure functions of the settings so that resumption behaves the
// same across launches: a run can only find its previous checkpoint if the
// path never depends on anything time-varying.

// StagingDir is where the dataset is copied before training.
//
// For example, "$SCRATCH/solo-learn-data/imagenet100/".
func (s *Settings) StagingDir() *paths.AbsolutePath {
	if s.ScratchDir == nil || s.DataDir == nil {
		return nil
	}
	dir := s.ScratchDir.Join("solo-learn-data", s.DataDir.Base())
	return &dir
}

// RunCheckpointDir is the per-run checkpoint directory, keyed by run name.
func (s *Settings) RunCheckpointDir() *paths.AbsolutePath {
	if s.CheckpointDir == nil {
		return nil
	}
	dir := s.CheckpointDir.Join(fileutil.SanitizeFilename(s.RunName))
	return &dir
}

// ResumeCheckpointPath is the deterministic location a previous run of the
// same name would have left its last checkpoint.
func (s *Settings) ResumeCheckpointPath() *paths.AbsolutePath {
	dir := s.RunCheckpointDir()
	if dir == nil {
		return nil
	}
	path := dir.Join("last.ckpt")
	return &path
}

// MetadataPath is where the launcher records what it dispatched.
func (s *Settings) MetadataPath() *paths.AbsolutePath {
	dir := s.RunCheckpointDir()
	if dir == nil {
		return nil
	}
	path := dir.Join("launch-metadata.json")
	return &path
}
