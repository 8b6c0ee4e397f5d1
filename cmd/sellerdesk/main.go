package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/iurnickita/sellerdesk/internal/auth"
	"github.com/iurnickita/sellerdesk/internal/backendclient"
	"github.com/iurnickita/sellerdesk/internal/config"
	"github.com/iurnickita/sellerdesk/internal/handler"
	"github.com/iurnickita/sellerdesk/internal/logger"
	"github.com/iurnickita/sellerdesk/internal/merger"
	"github.com/iurnickita/sellerdesk/internal/metrics"
	"github.com/iurnickita/sellerdesk/internal/report"
	"github.com/iurnickita/sellerdesk/internal/service"
	"github.com/iurnickita/sellerdesk/internal/store"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	mtr := metrics.New()
	client := backendclient.NewClient(cfg.Backend, zaplog)
	merger := merger.NewMerger(cfg.Merger, client, zaplog, mtr)
	reports := report.NewGenerator(cfg.Report, merger, zaplog, mtr)
	service := service.NewService(cfg.Service, client, reports, store, mtr, zaplog)
	auth := auth.NewAuth(cfg.Auth, zaplog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// просроченные документы и брошенные сессии
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				service.Sweep()
			}
		}
	}()

	return handler.Serve(ctx, cfg.Handler, auth, service, mtr, zaplog)
}
