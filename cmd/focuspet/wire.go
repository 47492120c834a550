package main

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-focuspet/internal/config"
	"github.com/teslashibe/go-focuspet/pkg/companion"
	"github.com/teslashibe/go-focuspet/pkg/pipeline"
	"github.com/teslashibe/go-focuspet/pkg/statecache"
	"github.com/teslashibe/go-focuspet/pkg/stats"
	"github.com/teslashibe/go-focuspet/pkg/vision"
	"github.com/teslashibe/go-focuspet/pkg/web"
	"go.uber.org/zap"
)

func newOpener(cfg *config.Config, logger *zap.SugaredLogger) pipeline.Opener {
	switch cfg.Backend {
	case config.BackendMock:
		return &pipeline.MockOpener{}
	case config.BackendRemote:
		return &vision.Opener{Backend: vision.BackendRemote, Video: cfg.Video, Logger: logger}
	default:
		return &vision.Opener{Backend: vision.BackendDevice, Logger: logger}
	}
}

func previewEncoder() web.PreviewEncoder {
	return vision.EncodeJPEG
}

// companionOptions opens the stats store and the optional Redis mirror.
// The returned cleanup closes the mirror; the companion closes the store.
func companionOptions(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) ([]companion.Option, func(), error) {
	opts := []companion.Option{companion.WithLogger(logger)}
	cleanup := func() {}

	switch cfg.Stats.Driver {
	case config.StatsPostgres:
		store, err := stats.OpenSQL(ctx, cfg.Stats.DSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open stats store: %w", err)
		}
		logger.Info("stats store: postgres")
		opts = append(opts, companion.WithStore(store))
	default:
		opts = append(opts, companion.WithStore(stats.NewMemoryStore()))
	}

	if cfg.Redis.Enabled {
		mirror := statecache.New(cfg.Redis.Config)
		if err := mirror.Ping(ctx); err != nil {
			// Writes are retried every tick, so a late Redis still works
			logger.Warnw("redis not reachable", "addr", cfg.Redis.Addr, "error", err)
		}
		opts = append(opts, companion.WithSink(mirror))
		cleanup = func() { mirror.Close() }
	}

	return opts, cleanup, nil
}
