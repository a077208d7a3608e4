package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lavoiems/solo-learn/internal/launcher"
	"github.com/lavoiems/solo-learn/internal/method"
	"github.com/lavoiems/solo-learn/internal/observability"
	"github.com/lavoiems/solo-learn/internal/preset"
	"github.com/lavoiems/solo-learn/internal/sentryext"
	"github.com/lavoiems/solo-learn/internal/settings"
	"github.com/lavoiems/solo-learn/internal/trackingcheck"
	"github.com/lavoiems/solo-learn/internal/version"
)

// this is set by the build script and used for error reporting
var commit string

// repeatedFlag collects every occurrence of a repeatable flag.
type repeatedFlag []string

func (f *repeatedFlag) String() string { return strings.Join(*f, ",") }

func (f *repeatedFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	methodName := flag.String("method", "",
		"SSL method to train. One of: "+strings.Join(method.Names(), ", ")+".")
	dataset := flag.String("dataset", "",
		"Dataset to pretrain on, e.g. cifar100, stl10, imagenet100.")
	presetName := flag.String("preset", "",
		"Built-in preset to start from. Defaults to the preset named after the method. "+
			"One of: "+strings.Join(preset.Names(), ", ")+".")
	presetFile := flag.String("preset-file", "",
		"Path to a YAML preset file to use instead of a built-in preset.")
	dataDir := flag.String("data-dir", "",
		"Shared dataset directory to stage from.")
	trainDir := flag.String("train-dir", "",
		"Training split subdirectory, forwarded to the trainer.")
	valDir := flag.String("val-dir", "",
		"Validation split subdirectory, forwarded to the trainer.")
	scratchDir := flag.String("scratch-dir", "",
		"Fast local storage for the staged dataset copy. Defaults to $SCRATCH, then $TMPDIR.")
	noStage := flag.Bool("no-stage", false,
		"Train directly against --data-dir instead of staging a local copy.")
	checkpointDir := flag.String("checkpoint-dir", "",
		"Root directory for checkpoints. The run gets a subdirectory keyed by its name.")
	saveCheckpoint := flag.Bool("save-checkpoint", false,
		"Ask the trainer to save checkpoints. Requires a writable --checkpoint-dir.")
	autoResume := flag.Bool("auto-resume", false,
		"Resume from the run's last checkpoint if one exists.")
	runName := flag.String("name", "",
		"Run name. Defaults to <method>-<dataset>-<random suffix>.")
	project := flag.String("project", "",
		"Experiment-tracking project.")
	entity := flag.String("entity", "",
		"Experiment-tracking entity (user or team).")
	wandb := flag.Bool("wandb", false,
		"Enable experiment tracking in the trainer.")
	offline := flag.Bool("offline", false,
		"Log tracking data locally instead of to the tracking server.")
	trainer := flag.String("trainer", "",
		"Trainer command to dispatch. Defaults to \"python3 main_pretrain.py\".")
	trackingURL := flag.String("tracking-url", "",
		"Base URL of the tracking server, probed before online runs.")
	dryRun := flag.Bool("dry-run", false,
		"Print the assembled trainer command and exit without staging or dispatching.")
	logLevel := flag.Int("log-level", 0,
		"Log level for the debug log. -4: debug, 0: info, 4: warn, 8: error.")
	disableAnalytics := flag.Bool("no-observability", false,
		"Disables error reporting analytics.")

	var overrideSpecs repeatedFlag
	flag.Var(&overrideSpecs, "set",
		"Override a trainer flag, e.g. -set lr=0.1, -set gaussian_prob=1.0,0.1, "+
			"-set knn_eval, -set lars= to drop a flag. Repeatable; later overrides win.")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "============================================\n")
		fmt.Fprintf(os.Stderr, "     solo-learn pretraining launcher        \n")
		fmt.Fprintf(os.Stderr, "============================================\n")
		fmt.Fprintf(os.Stderr, "Version: %s\n", version.Version)
		fmt.Fprintf(os.Stderr, "Commit SHA: %s\n\n", commit)
		fmt.Fprintf(os.Stderr, "Assembles, validates and dispatches a main_pretrain.py run:\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	// set up error reporting
	sentryClient := sentryext.New(sentryext.Params{
		DSN:              os.Getenv("SOLOLAUNCH_SENTRY_DSN"),
		Disabled:         *disableAnalytics,
		AttachStacktrace: true,
		Release:          version.Version,
		Environment:      version.Environment,
	})
	defer sentryClient.Flush(2 * time.Second)

	var slogger *slog.Logger
	if file, err := observability.GetLoggerPath(); err != nil {
		slog.Error("failed to get logger path", "error", err)
		slogger = slog.New(slog.DiscardHandler)
	} else {
		slogger = slog.New(
			slog.NewJSONHandler(
				file,
				&slog.HandlerOptions{
					Level:     slog.Level(*logLevel),
					AddSource: false,
				},
			),
		)
		defer func() {
			_ = file.Close()
		}()
	}

	s, err := settings.Resolve(settings.Params{
		Method:         *methodName,
		Dataset:        *dataset,
		PresetName:     *presetName,
		PresetFile:     *presetFile,
		DataDir:        *dataDir,
		TrainDirName:   *trainDir,
		ValDirName:     *valDir,
		ScratchDir:     *scratchDir,
		CheckpointDir:  *checkpointDir,
		RunName:        *runName,
		Project:        *project,
		Entity:         *entity,
		Wandb:          *wandb,
		Offline:        *offline,
		SaveCheckpoint: *saveCheckpoint,
		AutoResume:     *autoResume,
		Stage:          !*noStage && *dataDir != "",
		DryRun:         *dryRun,
		TrainerCommand: *trainer,
		TrackingURL:    *trackingURL,
		LookupEnv:      os.LookupEnv,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return launcher.ExitCodeConfiguration
	}

	logger := observability.NewCoreLogger(
		slogger,
		&observability.CoreLoggerParams{
			Sentry: sentryClient,
			Tags: observability.Tags{
				"run_name": s.RunName,
				"method":   s.Method,
				"dataset":  s.Dataset,
			},
		},
	)
	defer logger.Reraise()
	logger.Info(
		"main: starting launch",
		"version", version.Version,
		"run_name", s.RunName,
		"dry_run", s.DryRun,
	)

	overrides, err := launcher.ParseOverrides(overrideSpecs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return launcher.ExitCodeConfiguration
	}

	// A signal interrupts staging and is forwarded to the trainer through
	// process-group delivery; the launcher just stops waiting.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := launcher.New(launcher.Params{
		Settings:        s,
		Logger:          logger,
		Overrides:       overrides,
		TrackingChecker: trackingcheck.New(logger),
	})

	code, err := l.Launch(ctx)
	if err != nil {
		var trainerErr *launcher.TrainerExecutionError
		if errors.As(err, &trainerErr) {
			// The trainer already wrote its own diagnostics to stderr.
			logger.Error(err.Error())
		} else {
			logger.CaptureError(err)
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return code
}
