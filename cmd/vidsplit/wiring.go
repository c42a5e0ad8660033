package main

import (
	"context"
	"fmt"

	"github.com/bdougie/vidsplit/internal/encoder"
	"github.com/bdougie/vidsplit/internal/formats"
	"github.com/bdougie/vidsplit/internal/ledger"
	"github.com/bdougie/vidsplit/internal/node"
	"github.com/bdougie/vidsplit/internal/splitter"
)

// pipeline is the wired encoder, node and registry for one command
type pipeline struct {
	encoder  *encoder.FFmpegEncoder
	node     *node.SplitCombine
	registry node.Registry
}

func (a *app) catalog() formats.Catalog {
	var discoverers []formats.Discoverer
	if a.cfg.FormatsDir != "" {
		discoverers = append(discoverers, formats.NewDirDiscoverer(a.cfg.FormatsDir))
	}
	return formats.Resolve(a.logger, discoverers...)
}

func (a *app) pipeline(verbose bool) (*pipeline, error) {
	catalog := a.catalog()

	enc := encoder.New(encoder.Options{
		FFmpegPath: a.cfg.FFmpegPath,
		OutputDir:  a.cfg.OutputDir,
		TempDir:    a.cfg.TempDir,
		Catalog:    catalog,
		Verbose:    verbose,
	}, a.logger)
	if a.runner != nil {
		enc.WithRunner(a.runner)
	}

	sc := node.NewSplitCombine(splitter.New(enc, a.logger), catalog, a.cfg.Defaults)
	registry, err := node.NewRegistry(sc)
	if err != nil {
		return nil, err
	}
	return &pipeline{encoder: enc, node: sc, registry: registry}, nil
}

// openLedger picks Postgres when configured and the JSON file otherwise;
// disabled yields a ledger that records nothing. The returned func releases
// the ledger after flushing it.
func (a *app) openLedger(ctx context.Context, disabled bool) (ledger.Ledger, func(), error) {
	if disabled {
		a.logger.Debug("run ledger disabled")
		return ledger.Nop{}, func() {}, nil
	}
	if a.cfg.Postgres.Enabled() {
		pg, err := ledger.NewPostgresLedger(ctx, a.cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
		a.logger.Debug("using postgres run ledger", "host", a.cfg.Postgres.Host)
		return pg, pg.Close, nil
	}

	fl := ledger.NewFileLedger(a.cfg.OutputDir, a.cfg.LedgerBatchSize)
	a.logger.Debug("using file run ledger", "path", fl.Path())
	return fl, func() {
		if err := fl.Flush(); err != nil {
			a.logger.Error("failed to flush run ledger", "error", err)
		}
	}, nil
}
