// Package app runs a set of dependencies until the process is told to stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

//go:generate mockgen -destination=./app_mock.go -package=app -source=app.go

// Dependency is anything the application starts before serving and stops on shutdown.
type Dependency interface {
	// Start must not block once the dependency is ready.
	Start() error
	Stop() error
	// Name is used for logging only.
	Name() string
}

type App struct {
	name        string
	deps        []Dependency
	stopTimeout time.Duration
	running     atomic.Bool
}

// Config names the application and bounds its shutdown.
type Config struct {
	Name        string
	StopTimeout time.Duration
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("app config required")
	}

	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, errors.New("stop timeout is required"))
	}
	return errors.Join(errs...)
}

// New creates an application over deps. They are started in order and stopped in reverse.
func New(cfg *Config, deps ...Dependency) (*App, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &App{
		name:        cfg.Name,
		deps:        deps,
		stopTimeout: cfg.StopTimeout,
	}, nil
}

// Run starts every dependency and blocks until ctx is done or the process receives SIGINT or
// SIGTERM, then stops whatever was started. A failing Start stops the dependencies already
// running and is returned.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("run has already been called")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	started, err := a.start()
	if err != nil {
		log.Error().Err(err).Msgf("%s failed to start", a.name)
		return errors.Join(err, a.stop(started))
	}

	<-ctx.Done()
	log.Info().Msgf("%s shutting down: %v", a.name, context.Cause(ctx))
	return a.stop(started)
}

func (a *App) start() (started []Dependency, err error) {
	for _, dep := range a.deps {
		log.Info().Msg("Starting dependency: " + dep.Name())
		if err := startSafely(dep); err != nil {
			return started, err
		}
		started = append(started, dep)
	}
	return started, nil
}

func startSafely(dep Dependency) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Start() for dependency %s: %v", dep.Name(), r)
		}
	}()

	if err := dep.Start(); err != nil {
		return fmt.Errorf("failure in Start() for dependency %s: %w", dep.Name(), err)
	}
	return nil
}

// stop stops deps last to first and gives up waiting after the stop timeout.
func (a *App) stop(deps []Dependency) error {
	done := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(deps) - 1; i >= 0; i-- {
			log.Info().Msg("Stopping dependency: " + deps[i].Name())
			if err := deps[i].Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failure in Stop() for dependency %s: %w",
					deps[i].Name(), err))
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(a.stopTimeout):
		return fmt.Errorf("%s did not stop within %v", a.name, a.stopTimeout)
	}
}
