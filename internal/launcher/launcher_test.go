package launcher_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavoiems/solo-learn/internal/execbin"
	"github.com/lavoiems/solo-learn/internal/launcher"
	"github.com/lavoiems/solo-learn/internal/observability"
	"github.com/lavoiems/solo-learn/internal/settings"
)

// fakeDispatch records the command instead of running it.
type fakeDispatch struct {
	called   bool
	command  []string
	exitCode int
}

func (f *fakeDispatch) run(_ context.Context, command []string, _ []string) (*execbin.Result, error) {
	f.called = true
	f.command = command
	return &execbin.Result{ExitCode: f.exitCode}, nil
}

func resolve(t *testing.T, params settings.Params) *settings.Settings {
	t.Helper()
	s, err := settings.Resolve(params)
	require.NoError(t, err)
	return s
}

func contains(command []string, flag, value string) bool {
	for i, arg := range command {
		if arg == flag && i+1 < len(command) && command[i+1] == value {
			return true
		}
	}
	return false
}

func TestLaunchStagesAndDispatches(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/datasets/cifar100/train/a.bin", []byte("aaa"), 0644))

	dispatch := &fakeDispatch{}
	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:  "sdbyol",
			Dataset: "cifar100",
			RunName: "sdbyol-cifar100-test",
			DataDir: "/datasets/cifar100",
			Stage:   true,
			LookupEnv: func(key string) (string, bool) {
				if key == "SCRATCH" {
					return "/scratch", true
				}
				return "", false
			},
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: fs,
		Dispatch:   dispatch.run,
	})

	code, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	require.True(t, dispatch.called)
	assert.Equal(t, []string{"python3", "main_pretrain.py"}, dispatch.command[:2])
	assert.True(t, contains(dispatch.command, "--voc_size", "13"))
	assert.True(t, contains(dispatch.command, "--message_size", "5000"))
	assert.True(t, contains(dispatch.command, "--dataset", "cifar100"))
	assert.True(t, contains(dispatch.command, "--data_dir",
		filepath.Join("/scratch", "solo-learn-data", "cifar100")))

	staged, err := afero.Exists(fs, "/scratch/solo-learn-data/cifar100/train/a.bin")
	require.NoError(t, err)
	assert.True(t, staged, "dataset should be staged before dispatch")
}

func TestLaunchFailsOnMissingCompanionFlag(t *testing.T) {
	dispatch := &fakeDispatch{}
	overrides, err := launcher.ParseOverrides([]string{"voc_size=13"})
	require.NoError(t, err)

	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:  "simclr",
			Dataset: "cifar10",
			RunName: "r",
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewMemMapFs(),
		Dispatch:   dispatch.run,
		Overrides:  overrides,
	})

	code, err := l.Launch(context.Background())
	require.Error(t, err)
	assert.Equal(t, launcher.ExitCodeConfiguration, code)

	var confErr *launcher.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
	assert.False(t, dispatch.called, "trainer must not start on invalid configuration")
}

func TestLaunchFailsWhenStagingSourceMissing(t *testing.T) {
	dispatch := &fakeDispatch{}
	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:     "byol",
			Dataset:    "cifar10",
			RunName:    "r",
			DataDir:    "/datasets/absent",
			ScratchDir: "/scratch",
			Stage:      true,
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewMemMapFs(),
		Dispatch:   dispatch.run,
	})

	code, err := l.Launch(context.Background())
	require.Error(t, err)
	assert.Equal(t, launcher.ExitCodeStaging, code)

	var stagingErr *launcher.StagingError
	assert.ErrorAs(t, err, &stagingErr)
	assert.Contains(t, err.Error(), "/datasets/absent")
	assert.False(t, dispatch.called, "dispatch never starts if staging failed")
}

func TestLaunchFailsWithoutScratchWhenStagingRequested(t *testing.T) {
	dispatch := &fakeDispatch{}
	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:  "byol",
			Dataset: "cifar10",
			RunName: "r",
			DataDir: "/datasets/cifar10",
			Stage:   true,
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewMemMapFs(),
		Dispatch:   dispatch.run,
	})

	code, err := l.Launch(context.Background())
	require.Error(t, err)
	assert.Equal(t, launcher.ExitCodeConfiguration, code)

	var confErr *launcher.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
	assert.False(t, dispatch.called)
}

func TestLaunchFailsWhenCheckpointDirNotWritable(t *testing.T) {
	dispatch := &fakeDispatch{}
	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:         "byol",
			Dataset:        "cifar10",
			RunName:        "r",
			CheckpointDir:  "/ckpt",
			SaveCheckpoint: true,
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewReadOnlyFs(afero.NewMemMapFs()),
		Dispatch:   dispatch.run,
	})

	code, err := l.Launch(context.Background())
	require.Error(t, err)
	assert.Equal(t, launcher.ExitCodeConfiguration, code)

	var confErr *launcher.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
	assert.Contains(t, err.Error(), "not writable")
	assert.False(t, dispatch.called, "no process may be spawned")
}

func TestLaunchPassesTrainerExitCodeThrough(t *testing.T) {
	dispatch := &fakeDispatch{exitCode: 17}
	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:  "simclr",
			Dataset: "cifar10",
			RunName: "r",
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewMemMapFs(),
		Dispatch:   dispatch.run,
	})

	code, err := l.Launch(context.Background())
	require.Error(t, err)
	assert.Equal(t, 17, code)

	var trainerErr *launcher.TrainerExecutionError
	require.ErrorAs(t, err, &trainerErr)
	assert.Equal(t, 17, trainerErr.ExitCode)
}

func TestDryRunSkipsStagingAndDispatch(t *testing.T) {
	dispatch := &fakeDispatch{}
	fs := afero.NewMemMapFs()
	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:     "byol",
			Dataset:    "cifar100",
			RunName:    "r",
			DataDir:    "/datasets/cifar100",
			ScratchDir: "/scratch",
			Stage:      true,
			DryRun:     true,
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: fs,
		Dispatch:   dispatch.run,
	})

	code, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.False(t, dispatch.called)

	staged, err := afero.DirExists(fs, "/scratch")
	require.NoError(t, err)
	assert.False(t, staged, "dry run must not touch the staging area")
}

func TestDryRunLeavesCheckpointDirUntouched(t *testing.T) {
	dispatch := &fakeDispatch{}
	backing := afero.NewMemMapFs()
	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:         "byol",
			Dataset:        "cifar10",
			RunName:        "r",
			CheckpointDir:  "/ckpt",
			SaveCheckpoint: true,
			DryRun:         true,
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewReadOnlyFs(backing),
		Dispatch:   dispatch.run,
	})

	code, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.False(t, dispatch.called)

	created, err := afero.DirExists(backing, "/ckpt")
	require.NoError(t, err)
	assert.False(t, created, "dry run must not create the checkpoint dir")
}

func TestAssembleIsDeterministic(t *testing.T) {
	build := func() []string {
		dispatch := &fakeDispatch{}
		l := launcher.New(launcher.Params{
			Settings: resolve(t, settings.Params{
				Method:  "barlow_twins",
				Dataset: "cifar100",
				RunName: "fixed-name",
			}),
			Logger:     observability.NewNoOpLogger(),
			FileSystem: afero.NewMemMapFs(),
			Dispatch:   dispatch.run,
		})
		rc, err := l.Assemble("/data")
		require.NoError(t, err)
		return rc.Argv()
	}

	assert.Equal(t, build(), build())
}

func TestOverridesWinOverPreset(t *testing.T) {
	overrides, err := launcher.ParseOverrides([]string{
		"lr=0.1",
		"gaussian_prob=0.5,0.5",
		"knn_eval",
	})
	require.NoError(t, err)

	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:  "byol",
			Dataset: "cifar100",
			RunName: "r",
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewMemMapFs(),
		Overrides:  overrides,
	})

	rc, err := l.Assemble("")
	require.NoError(t, err)

	assert.Equal(t, "0.1", rc.GetString("lr"))
	values, ok := rc.Get("gaussian_prob")
	require.True(t, ok)
	assert.Equal(t, []string{"0.5", "0.5"}, values)
	assert.True(t, rc.Has("knn_eval"))

	require.NoError(t, l.Validate(rc))
}

func TestOverrideRemovalDropsPresetFlag(t *testing.T) {
	overrides, err := launcher.ParseOverrides([]string{"lars="})
	require.NoError(t, err)

	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			Method:  "byol",
			Dataset: "cifar10",
			RunName: "r",
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewMemMapFs(),
		Overrides:  overrides,
	})

	rc, err := l.Assemble("")
	require.NoError(t, err)
	assert.False(t, rc.Has("lars"))
}

func TestPresetSelectsMethodWhenNoneGiven(t *testing.T) {
	l := launcher.New(launcher.Params{
		Settings: resolve(t, settings.Params{
			PresetName: "sdbyol",
			Dataset:    "cifar100",
			RunName:    "r",
		}),
		Logger:     observability.NewNoOpLogger(),
		FileSystem: afero.NewMemMapFs(),
	})

	rc, err := l.Assemble("")
	require.NoError(t, err)
	assert.Equal(t, "sdbyol", rc.GetString("method"))
	require.NoError(t, l.Validate(rc))
}
