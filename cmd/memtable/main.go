// Command memtable runs an in-memory LiteTable server for local development against the
// mapper's DAO. Settings come from ~/.litetable/litetable.conf when it exists.
package main

import (
	"context"
	"time"

	"github.com/litetable/litetable-mapper/internal/app"
	"github.com/litetable/litetable-mapper/internal/config"
	"github.com/litetable/litetable-mapper/internal/memtable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	application, err := initialize()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}

	if err = application.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("memtable exited with error")
	}
}

func initialize() (*app.App, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Warn().Err(err).Msg("using default settings")
		cfg = &config.Config{ServerAddress: "127.0.0.1", ServerPort: 9443}
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	srv, err := memtable.NewServer(&memtable.Config{
		Address: cfg.ServerAddress,
		Port:    cfg.ServerPort,
	})
	if err != nil {
		return nil, err
	}

	return app.New(&app.Config{
		Name:        "LiteTable memtable",
		StopTimeout: 5 * time.Second,
	}, srv)
}
