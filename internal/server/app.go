// Package server runs the HTTP sync trigger: a long-lived process that
// starts one sync pass per authenticated POST /sync.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/zdbackup/internal/app"
	"github.com/dmitrijs2005/zdbackup/internal/config"
	"github.com/dmitrijs2005/zdbackup/internal/logging"
	"github.com/dmitrijs2005/zdbackup/internal/syncer"
)

type App struct {
	config *config.Config
	logger logging.Logger
	engine *app.App
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	engine, err := app.Open(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	return &App{config: c, logger: logger, engine: engine}, nil
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (a *App) sync(ctx context.Context) (*syncer.Report, error) {
	return a.engine.Sync(ctx, !a.config.TriggerDisableDownloads)
}

// Run serves the trigger until a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer a.engine.Close()

	a.logger.Info(ctx, "Starting app...")
	a.initSignalHandler(cancelFunc)

	s := NewHTTPServer(a.config.TriggerAddr, a.logger, a.sync, a.config.TriggerSecret)
	return s.Run(ctx)
}
