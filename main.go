package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ShixuDing/32933-project-match/config"
	"github.com/ShixuDing/32933-project-match/internal/api"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("projmatch")

func main() {
	// ---------- Load Config ----------
	cfg := config.LoadConfig()
	if err := loggo.ConfigureLoggers(cfg.LogLevel); err != nil {
		logger.Warningf("bad LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------- Start Server ----------
	logger.Infof("project match API starting (env=%s port=%s)", cfg.Env, cfg.ServerPort)
	if err := api.StartServer(ctx, cfg); err != nil {
		logger.Errorf("server stopped: %s", errors.Details(err))
		stop()
		os.Exit(1)
	}
	logger.Infof("server stopped")
}
