// Package launcher assembles, validates, and dispatches one training run.
//
// The launch is a single linear pipeline: resolve environment, stage the
// dataset, assemble the argument vector, validate it, dispatch the trainer.
// Staging and validation failures are fatal and reported before any trainer
// process starts; trainer failures are passed through via the exit status.
package launcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/lavoiems/solo-learn/internal/execbin"
	"github.com/lavoiems/solo-learn/internal/method"
	"github.com/lavoiems/solo-learn/internal/observability"
	"github.com/lavoiems/solo-learn/internal/preset"
	"github.com/lavoiems/solo-learn/internal/runconfig"
	"github.com/lavoiems/solo-learn/internal/runmeta"
	"github.com/lavoiems/solo-learn/internal/settings"
	"github.com/lavoiems/solo-learn/internal/stage"
	"github.com/lavoiems/solo-learn/internal/trackingcheck"
	"github.com/lavoiems/solo-learn/internal/version"
)

// Dispatcher runs the assembled trainer command. Injectable for tests.
type Dispatcher func(ctx context.Context, command []string, extraEnv []string) (*execbin.Result, error)

type Params struct {
	Settings *settings.Settings
	Logger   *observability.CoreLogger

	// Overrides are applied on top of the preset, last.
	Overrides *Overrides

	// FileSystem defaults to the OS filesystem.
	FileSystem afero.Fs

	// Dispatch defaults to execbin.Run.
	Dispatch Dispatcher

	// TrackingChecker may be nil to skip the online-tracking probe.
	TrackingChecker *trackingcheck.Checker
}

type Launcher struct {
	settings  *settings.Settings
	logger    *observability.CoreLogger
	overrides *Overrides
	fs        afero.Fs
	dispatch  Dispatcher
	checker   *trackingcheck.Checker
}

func New(params Params) *Launcher {
	fs := params.FileSystem
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dispatch := params.Dispatch
	if dispatch == nil {
		dispatch = execbin.Run
	}
	overrides := params.Overrides
	if overrides == nil {
		overrides = &Overrides{Set: runconfig.New()}
	}

	return &Launcher{
		settings:  params.Settings,
		logger:    params.Logger,
		overrides: overrides,
		fs:        fs,
		dispatch:  dispatch,
		checker:   params.TrackingChecker,
	}
}

// Launch runs the pipeline and returns the process exit code.
//
// The returned error describes what went wrong; the exit code is what the
// launcher process should exit with. A trainer's non-zero status is passed
// through unchanged.
func (l *Launcher) Launch(ctx context.Context) (int, error) {
	s := l.settings

	// resolve
	stagedDataDir, err := l.resolveDataDir()
	if err != nil {
		return ExitCodeConfiguration, err
	}

	// stage
	if s.Stage && !s.DryRun {
		stager := stage.New(l.fs, l.logger)
		result, err := stager.Stage(ctx, s.DataDir.OrEmpty(), stagedDataDir)
		if err != nil {
			return ExitCodeStaging, &StagingError{Err: err}
		}
		l.logger.Info(
			"launcher: dataset staged",
			"source", s.DataDir.OrEmpty(),
			"destination", stagedDataDir,
			"copied", result.FilesCopied,
			"skipped", result.FilesSkipped,
			"bytes", result.BytesCopied,
		)
	}

	// assemble
	rc, err := l.Assemble(stagedDataDir)
	if err != nil {
		return ExitCodeConfiguration, &ConfigurationError{Err: err}
	}

	// validate
	if err := l.Validate(rc); err != nil {
		return ExitCodeConfiguration, &ConfigurationError{Err: err}
	}

	argv := rc.Argv()

	if s.DryRun {
		fmt.Println(strings.Join(append(append([]string{}, s.TrainerCommand...), argv...), " "))
		return 0, nil
	}

	if l.checker != nil && s.Wandb && !s.Offline {
		if err := l.checker.Probe(ctx, s.TrackingURL); err != nil {
			l.logger.CaptureWarn(
				"launcher: tracking server unreachable, consider --offline",
				"err", err.Error(),
			)
		}
	}

	l.writeMetadata(rc, stagedDataDir)

	// dispatch
	command := append(append([]string{}, s.TrainerCommand...), argv...)
	l.logger.Info("launcher: dispatching trainer", "command", strings.Join(command, " "))

	result, err := l.dispatch(ctx, command, nil)
	if err != nil {
		return 1, fmt.Errorf("launcher: %w", err)
	}
	if result.ExitCode != 0 {
		return result.ExitCode, &TrainerExecutionError{ExitCode: result.ExitCode}
	}
	return 0, nil
}

// resolveDataDir decides which dataset path the trainer will see and checks
// that the execution environment supports the requested staging.
func (l *Launcher) resolveDataDir() (string, error) {
	s := l.settings

	if !s.Stage {
		return s.DataDir.OrEmpty(), nil
	}

	if s.DataDir == nil {
		return "", &ConfigurationError{
			Err: fmt.Errorf("staging requested but no data dir given"),
		}
	}
	if s.ScratchDir == nil {
		return "", &ConfigurationError{
			Err: fmt.Errorf("staging requested but no scratch dir is set (flag, $SCRATCH, or $TMPDIR)"),
		}
	}
	return s.StagingDir().OrEmpty(), nil
}

// Assemble merges the preset template with the launcher-owned flags and the
// user's overrides into the final run configuration. Later overrides win.
func (l *Launcher) Assemble(dataDir string) (*runconfig.RunConfig, error) {
	s := l.settings

	var p *preset.Preset
	var err error
	switch {
	case s.PresetFile != "":
		p, err = preset.LoadFile(s.PresetFile)
	case s.PresetName != "":
		p, err = preset.Load(s.PresetName)
	default:
		p, err = preset.Load(s.Method)
	}
	if err != nil {
		return nil, err
	}

	rc, err := p.Resolve(s.Dataset)
	if err != nil {
		return nil, err
	}

	if s.Method != "" {
		rc.Set("method", s.Method)
	}

	if dataDir != "" {
		rc.Set("data_dir", dataDir)
	}
	if s.TrainDirName != "" {
		rc.Set("train_dir", s.TrainDirName)
	}
	if s.ValDirName != "" {
		rc.Set("val_dir", s.ValDirName)
	}

	rc.Set("name", s.RunName)
	if s.Project != "" {
		rc.Set("project", s.Project)
	}
	if s.Entity != "" {
		rc.Set("entity", s.Entity)
	}
	rc.SetBool("wandb", s.Wandb)
	rc.SetBool("offline", s.Offline)

	if s.CheckpointDir != nil {
		rc.Set("checkpoint_dir", s.RunCheckpointDir().OrEmpty())
	}
	rc.SetBool("save_checkpoint", s.SaveCheckpoint)
	rc.SetBool("auto_resume", s.AutoResume)

	l.overrides.Apply(rc)
	return rc, nil
}

// Validate rejects configurations the trainer would only reject after
// minutes of startup, plus everything the trainer would silently accept but
// we know to be a mistake.
func (l *Launcher) Validate(rc *runconfig.RunConfig) error {
	methodName := rc.GetString("method")
	if methodName == "" {
		return fmt.Errorf("no method selected")
	}
	m, ok := method.FromString(methodName)
	if !ok {
		return fmt.Errorf(
			"unknown method %q (known: %s)",
			methodName, strings.Join(method.Names(), ", "),
		)
	}
	if err := m.Validate(rc); err != nil {
		return err
	}

	if err := validateNumbers(rc); err != nil {
		return err
	}
	if err := validateViewArity(rc); err != nil {
		return err
	}

	if l.settings.SaveCheckpoint {
		if l.settings.RunCheckpointDir() == nil {
			return fmt.Errorf("save_checkpoint is set but no checkpoint dir given")
		}
		// A dry run must leave the filesystem untouched, so the write
		// probe only runs for a real launch.
		if !l.settings.DryRun {
			if err := l.checkCheckpointDirWritable(); err != nil {
				return err
			}
		}
	}

	if l.settings.AutoResume {
		l.logResumeState()
	}

	return nil
}

// validateNumbers checks that numeric flags parse and are sensible.
func validateNumbers(rc *runconfig.RunConfig) error {
	for _, flag := range []string{"max_epochs", "batch_size", "num_workers"} {
		if !rc.Has(flag) {
			continue
		}
		n, err := rc.GetInt(flag)
		if err != nil {
			return err
		}
		if flag != "num_workers" && n <= 0 {
			return fmt.Errorf("flag %s must be positive, got %d", flag, n)
		}
	}

	for _, flag := range []string{
		"lr", "classifier_lr", "weight_decay", "eta_lars", "min_lr",
		"temperature", "scale_loss",
		"base_tau_momentum", "final_tau_momentum", "tau_online", "tau_target",
		"brightness", "contrast", "saturation", "hue",
	} {
		if !rc.Has(flag) {
			continue
		}
		if _, err := rc.GetFloat(flag); err != nil {
			return err
		}
	}

	return nil
}

// validateViewArity checks that per-view flags carry one value per
// augmentation pipeline.
func validateViewArity(rc *runconfig.RunConfig) error {
	crops, ok := rc.Get("num_crops_per_aug")
	if !ok {
		return nil
	}
	pipelines := len(crops)

	for _, flag := range []string{"gaussian_prob", "solarization_prob"} {
		values, ok := rc.Get(flag)
		if !ok {
			continue
		}
		if len(values) != pipelines {
			return fmt.Errorf(
				"flag %s has %d values for %d augmentation pipelines",
				flag, len(values), pipelines,
			)
		}
		for _, v := range values {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("flag %s: %w", flag, err)
			}
		}
	}
	return nil
}

func (l *Launcher) checkCheckpointDirWritable() error {
	dir := l.settings.RunCheckpointDir()

	if err := l.fs.MkdirAll(string(*dir), 0755); err != nil {
		return fmt.Errorf("checkpoint dir %s is not writable: %v", *dir, err)
	}

	probe := string(dir.Join(".write-probe"))
	file, err := l.fs.Create(probe)
	if err != nil {
		return fmt.Errorf("checkpoint dir %s is not writable: %v", *dir, err)
	}
	file.Close()
	_ = l.fs.Remove(probe)
	return nil
}

// logResumeState reports whether auto_resume will actually resume anything.
// A missing checkpoint makes it a no-op equivalent to a fresh run.
func (l *Launcher) logResumeState() {
	path := l.settings.ResumeCheckpointPath()
	if path == nil {
		l.logger.Warn("launcher: auto_resume set but no checkpoint dir; starting fresh")
		return
	}

	if _, err := l.fs.Stat(string(*path)); err != nil {
		l.logger.Info(
			"launcher: no previous checkpoint, auto_resume starts a fresh run",
			"path", string(*path),
		)
		return
	}
	l.logger.Info("launcher: resuming from checkpoint", "path", string(*path))
}

func (l *Launcher) writeMetadata(rc *runconfig.RunConfig, stagedDataDir string) {
	s := l.settings
	path := s.MetadataPath()
	if path == nil || !s.SaveCheckpoint {
		return
	}

	meta := runmeta.Collect()
	meta.RunName = s.RunName
	meta.Method = rc.GetString("method")
	meta.Dataset = s.Dataset
	meta.LauncherVersion = version.Version
	meta.GPUs = rc.GetString("gpus")
	meta.DataDir = s.DataDir.OrEmpty()
	if s.Stage {
		meta.StagedTo = stagedDataDir
	}
	meta.Argv = rc.Argv()

	if err := meta.Write(string(*path)); err != nil {
		// Metadata is a debugging aid, not a launch requirement.
		l.logger.CaptureWarn("launcher: failed to write metadata", "err", err.Error())
	}
}
