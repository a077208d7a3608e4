// Package settings holds the launcher's own configuration, resolved once at
// startup. Nothing in the launcher reads the environment after this.
package settings

import (
	"fmt"
	"strings"

	"github.com/lavoiems/solo-learn/internal/paths"
	"github.com/lavoiems/solo-learn/internal/randomid"
)

// Params are the raw inputs to settings resolution: CLI flags plus an
// environment lookup. LookupEnv is injectable for tests.
type Params struct {
	Method     string
	Dataset    string
	PresetName string
	PresetFile string

	DataDir       string
	TrainDirName  string
	ValDirName    string
	ScratchDir    string
	CheckpointDir string

	RunName string
	Project string
	Entity  string
	Wandb   bool
	Offline bool

	SaveCheckpoint bool
	AutoResume     bool
	Stage          bool
	DryRun         bool

	TrainerCommand string
	TrackingURL    string

	LookupEnv func(key string) (string, bool)
}

// Settings is the resolved launcher configuration. It is immutable for the
// duration of the run.
type Settings struct {
	Method     string
	Dataset    string
	PresetName string
	PresetFile string

	// DataDir is the shared dataset root to stage from.
	DataDir *paths.AbsolutePath

	// TrainDirName and ValDirName are subdirectories of the dataset root,
	// forwarded to the trainer relative to the staged copy.
	TrainDirName string
	ValDirName   string

	// ScratchDir is the fast local storage root used as the staging
	// destination. Empty when no scratch location could be resolved.
	ScratchDir *paths.AbsolutePath

	CheckpointDir *paths.AbsolutePath

	RunName string
	Project string
	Entity  string
	Wandb   bool
	Offline bool

	SaveCheckpoint bool
	AutoResume     bool
	Stage          bool
	DryRun         bool

	// TrainerCommand is the command line prefix of the external trainer,
	// e.g. "python3 main_pretrain.py".
	TrainerCommand []string

	TrackingURL string
}

// Resolve derives the launcher settings from params.
//
// The scratch location comes from the explicit flag, then SCRATCH, then
// TMPDIR. A run name is generated from the method and dataset when none is
// given.
func Resolve(params Params) (*Settings, error) {
	lookupEnv := params.LookupEnv
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}

	scratch := params.ScratchDir
	if scratch == "" {
		if v, ok := lookupEnv("SCRATCH"); ok && v != "" {
			scratch = v
		} else if v, ok := lookupEnv("TMPDIR"); ok && v != "" {
			scratch = v
		}
	}

	var scratchPath *paths.AbsolutePath
	if scratch != "" {
		p, err := paths.Absolute(scratch)
		if err != nil {
			return nil, fmt.Errorf("invalid scratch dir %q: %v", scratch, err)
		}
		scratchPath = p
	}

	var dataPath *paths.AbsolutePath
	if params.DataDir != "" {
		p, err := paths.Absolute(params.DataDir)
		if err != nil {
			return nil, fmt.Errorf("invalid data dir %q: %v", params.DataDir, err)
		}
		dataPath = p
	}

	var checkpointPath *paths.AbsolutePath
	if params.CheckpointDir != "" {
		p, err := paths.Absolute(params.CheckpointDir)
		if err != nil {
			return nil, fmt.Errorf("invalid checkpoint dir %q: %v", params.CheckpointDir, err)
		}
		checkpointPath = p
	}

	runName := params.RunName
	if runName == "" {
		runName = fmt.Sprintf(
			"%s-%s-%s",
			params.Method, params.Dataset, randomid.GenerateUniqueID(8),
		)
	}

	trainerCommand := strings.Fields(params.TrainerCommand)
	if len(trainerCommand) == 0 {
		trainerCommand = []string{"python3", "main_pretrain.py"}
	}

	trackingURL := params.TrackingURL
	if trackingURL == "" {
		trackingURL = "https://api.wandb.ai"
	}

	return &Settings{
		Method:         params.Method,
		Dataset:        params.Dataset,
		PresetName:     params.PresetName,
		PresetFile:     params.PresetFile,
		DataDir:        dataPath,
		TrainDirName:   params.TrainDirName,
		ValDirName:     params.ValDirName,
		ScratchDir:     scratchPath,
		CheckpointDir:  checkpointPath,
		RunName:        runName,
		Project:        params.Project,
		Entity:         params.Entity,
		Wandb:          params.Wandb,
		Offline:        params.Offline,
		SaveCheckpoint: params.SaveCheckpoint,
		AutoResume:     params.AutoResume,
		Stage:          params.Stage,
		DryRun:         params.DryRun,
		TrainerCommand: trainerCommand,
		TrackingURL:    trackingURL,
	}, nil
}
