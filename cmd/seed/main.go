package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/demo"
	"github.com/hackgods/clinic-booking/internal/logger"
	"github.com/hackgods/clinic-booking/internal/slot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	if cfg.StorageDriver != config.StoragePostgres {
		fmt.Fprintln(os.Stderr, "seed writes to Postgres, set STORAGE_DRIVER=postgres")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	opts := demo.Options{
		Seed:      uint64(getInt("SEED_RANDOM", 0)),
		Providers: getInt("SEED_PROVIDERS", 10),
		Patients:  getInt("SEED_PATIENTS", 2000),
		Horizon: slot.GenerateSpec{
			From:        time.Now().In(cfg.Location),
			HorizonDays: cfg.HorizonDays,
			DayStart:    cfg.WorkdayStart,
			DayEnd:      cfg.WorkdayEnd,
			Grain:       cfg.SlotGrain,
		},
	}
	log.Info("seed starting", zap.Int("providers", opts.Providers), zap.Int("patients", opts.Patients))

	res, err := demo.Seed(ctx, a.Slots, a.PatientStore, opts, log)
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}

	log.Info("seed complete",
		zap.Int("providers", len(res.Providers)),
		zap.Int("slots", res.Slots),
		zap.Int("patients", res.Patients),
	)
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
