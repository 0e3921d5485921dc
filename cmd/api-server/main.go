package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/demo"
	"github.com/hackgods/clinic-booking/internal/logger"
	"github.com/hackgods/clinic-booking/internal/slot"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("storage", cfg.StorageDriver),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	if cfg.SeedDemo {
		defaults := a.SlotDefaults()
		_, err := demo.Seed(rootCtx, a.Slots, a.PatientStore, demo.Options{
			Patients: 50,
			Horizon: slot.GenerateSpec{
				From:        time.Now().In(cfg.Location),
				HorizonDays: defaults.HorizonDays,
				DayStart:    defaults.DayStart,
				DayEnd:      defaults.DayEnd,
				Grain:       defaults.Grain,
			},
		}, log)
		if err != nil {
			log.Fatal("demo seed failed", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Appointments:     a.Appointments,
			Slots:            a.Slots,
			Patients:         a.Patients,
			SlotDefaults:     a.SlotDefaults(),
			Checks:           a.Checks(),
			Log:              log,
			BookingRateLimit: cfg.BookingRateLimit,
			Env:              cfg.Env,
			Version:          version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down api-server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.RunDispatcher {
		g.Go(func() error {
			log.Info("reminder dispatcher running in-process", zap.Duration("interval", cfg.WorkerInterval))
			return a.Dispatcher().Run(ctx, cfg.WorkerInterval)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("api-server stopped with error", zap.Error(err))
		return
	}
	log.Info("api-server stopped")
}
