package main

import (
	"gopkg.in/urfave/cli.v1"

	"github.com/sf1r/coreengine/internal/vfs"
	"github.com/sf1r/coreengine/pkg/recommend"
)

var recommendBuildCommand = cli.Command{
	Name:   "recommend-build",
	Usage:  "load pending user and order bundles into the recommend collection",
	Action: runRecommendBuild,
}

func runRecommendBuild(ctx *cli.Context) error {
	cfg, err := LoadConfig(configPath(ctx))
	if err != nil {
		return err
	}

	rotator, err := openRotator(cfg)
	if err != nil {
		return err
	}

	var userDir, orderDir vfs.Dir
	if cfg.UserSCDDir != "" {
		if userDir, err = vfs.OpenDir(cfg.UserSCDDir, true); err != nil {
			return err
		}
	}
	if cfg.OrderSCDDir != "" {
		if orderDir, err = vfs.OpenDir(cfg.OrderSCDDir, true); err != nil {
			return err
		}
	}

	matrix := recommend.NewMemSimilarityMatrix()
	svc := recommend.New(recommend.Config{
		CollectionName:    cfg.CollectionName,
		CronExpr:          cfg.RecommendCronExpr,
		FreqItemSetEnable: cfg.FreqItemSetEnable,
	}, recommend.Collaborators{
		UserDir:               userDir,
		OrderDir:              orderDir,
		Rotator:               rotator,
		Users:                 recommend.NewMemUserStore(),
		Items:                 recommend.NewMemItemIDGenerator(),
		Visits:                recommend.NewMemVisitStore(),
		Purchases:             recommend.NewMemPurchaseStore(),
		Carts:                 recommend.NewMemCartStore(),
		Orders:                recommend.NewMemOrderStore(),
		Events:                recommend.NewMemEventStore(),
		Rates:                 recommend.NewMemRateStore(),
		Counters:              recommend.NewMemQueryPurchaseCounterStore(),
		VisitMatrix:           recommend.NewMemSimilarityMatrix(),
		PurchaseMatrix:        matrix,
		PurchaseCoVisitMatrix: recommend.NewMemSimilarityMatrix(),
		Similarity:            &recommend.MemSimilarityBuilder{},
	})

	return svc.BuildCollection()
}
