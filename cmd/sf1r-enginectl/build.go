package main

import (
	"context"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/sf1r/coreengine/internal/vfs"
	"github.com/sf1r/coreengine/pkg/directory"
	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/indexworker"
	"github.com/sf1r/coreengine/pkg/logserver"
	"github.com/sf1r/coreengine/pkg/scheduler"
)

var buildCommand = cli.Command{
	Name:   "build",
	Usage:  "run one index-worker build pass over the collection's bundle directory",
	Action: runBuild,
}

func runBuild(ctx *cli.Context) error {
	cfg, err := LoadConfig(configPath(ctx))
	if err != nil {
		return err
	}
	schemaDef, err := cfg.BuildSchema()
	if err != nil {
		return err
	}

	bundleDir, err := vfs.OpenDir(cfg.BundleDir, true)
	if err != nil {
		return errors.Wrap(err, "open bundle directory")
	}
	rotator, err := openRotator(cfg)
	if err != nil {
		return err
	}

	idMgr := docmodel.NewMemIdManager()
	docMgr := docmodel.NewMemDocumentManager()
	idxMgr := docmodel.NewMemIndexManager()

	var forward *logserver.Forwarder
	if cfg.LogServerEndpoint != "" {
		forward = logserver.New(cfg.LogServerEndpoint)
	}

	worker := indexworker.New(indexworker.Config{
		Schema:               schemaDef,
		SourceField:          cfg.SourceField,
		BackupThresholdBytes: cfg.BackupThreshold,
	}, bundleDir, rotator, idMgr, docMgr, idxMgr, nil, nil, forward)

	// The build pass runs on the job scheduler's single worker thread,
	// the same task-queue discipline a long-running server process
	// uses, rather than running inline on the CLI's own goroutine.
	jobs := scheduler.New(1)
	defer jobs.Close()

	done := make(chan error, 1)
	jobs.Add(func(taskCtx context.Context) {
		_, err := worker.BuildCollection(taskCtx)
		done <- err
	})
	return <-done
}

func openRotator(cfg Config) (*directory.Rotator, error) {
	currentFS, err := vfs.OpenDir(cfg.CurrentDataDir, true)
	if err != nil {
		return nil, errors.Wrap(err, "open current data directory")
	}
	current := directory.NewDirectory(cfg.CurrentDataDir, currentFS)

	if cfg.NextDataDir == "" {
		return directory.NewRotator(current, nil), nil
	}
	nextFS, err := vfs.OpenDir(cfg.NextDataDir, true)
	if err != nil {
		return nil, errors.Wrap(err, "open next data directory")
	}
	next := directory.NewDirectory(cfg.NextDataDir, nextFS)
	return directory.NewRotator(current, next), nil
}
