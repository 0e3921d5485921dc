// Package app wires stores, the slot lock and the notifier into the booking
// services shared by the commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/reminder"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type App struct {
	Config       config.Config
	Slots        slot.Store
	PatientStore identity.Store
	Patients     *identity.Resolver
	Reminders    *reminder.Scheduler
	Jobs         reminder.Store
	Appointments *appointment.Service
	Notifier     notify.Notifier

	log    *zap.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	closer func() error
}

// New connects to the configured backends and builds the services on top.
// Close releases whatever New opened.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, log: log}

	var repo appointment.Repository
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		a.pool = pool
		log.Info("connected to Postgres")

		if err := db.Migrate(ctx, pool); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}

		a.Slots = slot.NewPgStore(pool, cfg.Location)
		a.PatientStore = identity.NewPgStore(pool)
		a.Jobs = reminder.NewPgStore(pool)
		repo = appointment.NewPgRepository(pool, cfg.Location)
	default:
		a.Slots = slot.NewMemoryStore()
		a.PatientStore = identity.NewMemoryStore()
		a.Jobs = reminder.NewMemoryStore()
		repo = appointment.NewMemoryRepository()
		log.Info("using in-memory storage")
	}

	var opts []appointment.Option
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		a.rdb = rdb
		opts = append(opts, appointment.WithLocker(redisclient.NewSlotLocker(rdb, cfg.LockTTL)))
		log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.AMQPURL != "" {
		n, err := notify.DialAMQP(cfg.AMQPURL, cfg.NotifyQueue)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Notifier = n
		a.closer = n.Close
		log.Info("publishing notifications", zap.String("queue", cfg.NotifyQueue))
	} else {
		a.Notifier = notify.NewLogNotifier(log)
		log.Info("AMQP_URL not set, notifications are only logged")
	}

	dates, err := identity.DateParserFor(cfg.DOBOrder)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Patients = identity.NewResolver(a.PatientStore, dates, log)
	a.Reminders = reminder.NewScheduler(a.Jobs, cfg.ReminderOffsets, log)
	a.Appointments = appointment.NewService(
		repo,
		a.Slots,
		a.Patients,
		a.Reminders,
		a.Notifier,
		appointment.Policy{
			NewPatientDuration: cfg.NewPatientDuration,
			ReturningDuration:  cfg.ReturningPatientDuration,
			Grain:              cfg.SlotGrain,
			Location:           cfg.Location,
		},
		log,
		opts...,
	)

	return a, nil
}

func (a *App) Dispatcher() *reminder.Dispatcher {
	return reminder.NewDispatcher(a.Jobs, a.Notifier, a.log)
}

// SlotDefaults is the working-hours template used when generating slots.
func (a *App) SlotDefaults() api.SlotDefaults {
	return api.SlotDefaults{
		Location:    a.Config.Location,
		HorizonDays: a.Config.HorizonDays,
		DayStart:    a.Config.WorkdayStart,
		DayEnd:      a.Config.WorkdayEnd,
		Grain:       a.Config.SlotGrain,
	}
}

// Checks reports the backends readiness depends on. Redis only guards
// bookings, the slot store is still atomic without it.
func (a *App) Checks() []api.HealthCheck {
	var checks []api.HealthCheck
	if a.pool != nil {
		checks = append(checks, api.HealthCheck{Name: "postgres", Critical: true, Ping: a.pool.Ping})
	}
	if a.rdb != nil {
		rdb := a.rdb
		checks = append(checks, api.HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisclient.Ping(ctx, rdb) },
		})
	}
	return checks
}

func (a *App) Close() {
	if a.closer != nil {
		if err := a.closer(); err != nil {
			a.log.Warn("error closing notifier", zap.Error(err))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("error closing redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
