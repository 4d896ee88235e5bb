// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package run implements restuned's "run" subcommand: load
// configuration, build the registries and engine, and block until a
// termination signal arrives.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DataDog/restuned/cmd/restuned/command"
	"github.com/DataDog/restuned/pkg/classifier"
	"github.com/DataDog/restuned/pkg/classifier/netlinksrc"
	"github.com/DataDog/restuned/pkg/config"
	"github.com/DataDog/restuned/pkg/engine"
	"github.com/DataDog/restuned/pkg/errors"
	"github.com/DataDog/restuned/pkg/kernelapplier"
	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/registry"
)

type cliParams struct {
	*command.GlobalParams
	catalogPath string
}

// Commands returns the "run" subcommand bound to globalParams.
func Commands(globalParams *command.GlobalParams) *cobra.Command {
	cliParams := &cliParams{GlobalParams: globalParams}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the restuned daemon",
		RunE: func(*cobra.Command, []string) error {
			return run(cliParams)
		},
	}
	cmd.Flags().StringVar(&cliParams.catalogPath, "resource-catalog", "/etc/restuned/resources.yaml",
		"path to the resource catalog YAML file")
	return cmd
}

func run(params *cliParams) error {
	cfg, err := config.Load(params.ConfFilePath)
	if err != nil {
		return errors.Wrap(errors.KindFatalInit, "run", "failed to load configuration", err)
	}
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		log.Warnf("run: invalid log level %q, keeping default: %v", cfg.Log.Level, err)
	}

	applier := kernelapplier.NewLinux()
	topoAdapter := kernelapplier.NewTopologyAdapter(applier)

	targets := registry.NewTargetRegistry()
	targets.SetCGroupRoot(cfg.CGroupRoot)
	if err := targets.DiscoverTopology(topoAdapter); err != nil {
		return errors.Wrap(errors.KindFatalInit, "run", "topology discovery failed", err)
	}

	resources := registry.NewResourceRegistry()
	catalog, err := config.LoadResourceCatalog(params.catalogPath, targets, applier)
	if err != nil {
		return errors.Wrap(errors.KindFatalInit, "run", "resource catalog load failed", err)
	}
	for _, rc := range catalog {
		resources.Register(rc)
	}

	signals := registry.NewSignalRegistry()

	e := engine.New(cfg, resources, targets, signals)

	if cfg.Classifier.Enabled {
		apps := classifier.NewAppConfigStore()
		appCfgs, err := config.LoadAppConfig(cfg.Classifier.PerAppPath)
		if err != nil {
			log.Errorf("run: failed to load per-app config, classifier starting with none: %v", err)
		} else {
			apps.Replace(appCfgs)
		}

		filters, err := classifier.LoadFilterList(cfg.Classifier.AllowListPath, cfg.Classifier.BlockListPath)
		if err != nil {
			log.Errorf("run: failed to load filter lists, classifier allowing everything: %v", err)
			filters = &classifier.FilterList{}
		}

		src, err := netlinksrc.Open()
		if err != nil {
			log.Errorf("run: classifier disabled, failed to open netlink proc-event socket: %v", err)
		} else {
			e.EnableClassifier(src, classifier.DefaultClassifier{}, filters, apps)
			if watchErr := e.EnableConfigWatch(config.ReloadTargets{
				AppConfig:     apps,
				AppConfigPath: cfg.Classifier.PerAppPath,
				Filters:       filters,
				AllowListPath: cfg.Classifier.AllowListPath,
				BlockListPath: cfg.Classifier.BlockListPath,
			}); watchErr != nil {
				log.Warnf("run: config hot-reload disabled: %v", watchErr)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Start(ctx); err != nil {
		return errors.Wrap(errors.KindFatalInit, "run", "engine start failed", err)
	}
	log.Infof("restuned started")

	<-ctx.Done()
	log.Infof("restuned shutting down")
	return e.Stop()
}
