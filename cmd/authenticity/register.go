package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nspcc-dev/neofs-authenticity/artifact"
	"github.com/nspcc-dev/neofs-authenticity/classifier"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/ledger"
	"github.com/nspcc-dev/neofs-authenticity/pipeline"
	"github.com/nspcc-dev/neofs-authenticity/receipts"
	"go.uber.org/zap"
)

func runRegister(ctx context.Context, env *cmdEnv, args []string) error {
	cfg := env.cfg

	err := cfg.Validate()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Debug("configuration loaded", zap.Any("config", cfg))

	// empty or unreadable content fails before any network call
	content, err := readFile(args[0])
	if err != nil {
		return err
	}

	shutdown, err := setupTelemetry(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("failed to flush telemetry", zap.Error(err))
		}
	}()

	store, err := artifact.New(artifact.Options{
		Endpoint:   cfg.Artifact.Endpoint,
		Timeout:    cfg.Artifact.Timeout,
		Pin:        cfg.Artifact.Pin,
		CIDVersion: cfg.Artifact.CIDVersion,
		Logger:     log.Named("artifact"),
	})
	if err != nil {
		return fmt.Errorf("init artifact store: %w", err)
	}

	model, err := classifier.NewHTTPModel(cfg.Classifier.Endpoint, nil, cfg.Classifier.Timeout)
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}

	lc, closeLedger, err := ledger.Dial(ctx, ledger.DialPrm{
		Logger:            log.Named("ledger"),
		Endpoint:          cfg.Ledger.Endpoint,
		WIF:               cfg.Ledger.WIF.Reveal(),
		Contract:          cfg.Ledger.Contract,
		GasLimit:          cfg.Ledger.GasLimit,
		GasPrice:          *cfg.Ledger.GasPrice,
		NonceRetryBackoff: cfg.Ledger.NonceRetryBackoff,
		DialTimeout:       cfg.Ledger.DialTimeout,
		RequestTimeout:    cfg.Ledger.RequestTimeout,
	})
	if err != nil {
		return err
	}
	defer closeLedger()

	prm := pipeline.Prm{
		Logger:     log.Named("pipeline"),
		Store:      store,
		Classifier: classifier.New(model, log.Named("classifier")),
		Ledger:     lc,
		Gateway:    cfg.Artifact.Gateway,
		RunTimeout: cfg.Pipeline.RunTimeout,
	}

	if cfg.Journal.Path != "" {
		j, err := receipts.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		prm.Journal = j
	}

	p, err := pipeline.New(prm)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	rec, err := p.Run(ctx, content)
	if err != nil {
		return err
	}

	return env.print(rec)
}

func readFile(path string) (pipeline.Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Content{}, failure.New(failure.KindInput, "open content", err)
	}
	defer f.Close()

	return pipeline.ReadContent(filepath.Base(path), f)
}
