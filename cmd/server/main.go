package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prottoy/tableproto-backend/internal/config"
	"github.com/prottoy/tableproto-backend/internal/httpapi"
	"github.com/prottoy/tableproto-backend/internal/hub"
	"github.com/prottoy/tableproto-backend/internal/store"
	"github.com/prottoy/tableproto-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	if cfg.Dev {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Options{
		Canvas:   cfg.Canvas,
		LeaseTTL: cfg.LeaseTTL,
		Store:    store.NewMemoryStore(),
		Logger:   log,
	})

	handler := httpapi.SetupRoutes(h, ws.Options{AllowedOrigins: cfg.AllowedOrigins, Logger: log})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
