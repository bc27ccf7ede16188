package main

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/sf1r/coreengine/internal/adminhttp"
	"github.com/sf1r/coreengine/internal/vfs"
	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/indexworker"
	"github.com/sf1r/coreengine/pkg/logserver"
	"github.com/sf1r/coreengine/pkg/scheduler"
)

var serveCommand = cli.Command{
	Name:  "serve",
	Usage: "run the job scheduler and the ops/status HTTP surface for a collection",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "addr", Value: ":8080", Usage: "address the admin HTTP surface listens on"},
	},
	Action: runServe,
}

func runServe(ctx *cli.Context) error {
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

	jobs := scheduler.New(16)
	defer jobs.Close()

	// Prime the queue with one build pass so the collection reflects
	// whatever is already in the bundle directory at startup; further
	// passes are submitted the same way by whatever triggers them
	// (a cron, a filesystem watch, an operator) in a full deployment.
	jobs.Add(func(taskCtx context.Context) {
		if _, err := worker.BuildCollection(taskCtx); err != nil {
			log.Printf("serve: initial build pass failed: %v", err)
		}
	})

	return adminhttp.ListenAndServe(ctx.String("addr"), cfg.CollectionName, idxMgr, jobs, rotator)
}
