package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	hrmpersistence "github.com/iota-uz/hrm-import/modules/hrm/infrastructure/persistence"
	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
	"github.com/iota-uz/hrm-import/modules/importer/services"
	orgpersistence "github.com/iota-uz/hrm-import/modules/org/infrastructure/persistence"
	"github.com/iota-uz/hrm-import/pkg/composables"
	"github.com/iota-uz/hrm-import/pkg/configuration"
	"github.com/iota-uz/hrm-import/pkg/eventbus"
)

// app holds what every database-backed command needs.
type app struct {
	conf   *configuration.Configuration
	logger *logrus.Logger
	pool   *pgxpool.Pool
	engine *services.Engine
}

func newApp(ctx context.Context) (*app, context.Context, error) {
	conf := configuration.Use()
	logger := conf.Logger()

	pool, err := connectDB(ctx, conf)
	if err != nil {
		return nil, ctx, withCode(exitDB, err)
	}

	bus := eventbus.NewEventPublisher(logger)
	subscribeLogging(bus, logger)

	a := &app{
		conf:   conf,
		logger: logger,
		pool:   pool,
		engine: services.NewEngine(services.Dependencies{
			Employees:     hrmpersistence.NewEmployeeRepository(),
			Organizations: orgpersistence.NewOrganizationRepository(),
			Projects:      hrmpersistence.NewProjectRepository(),
			Publisher:     bus,
		}, services.ConfigFromOptions(conf.Import)),
	}
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithLogger(ctx, logrus.NewEntry(logger))
	return a, ctx, nil
}

func (a *app) Close() {
	a.pool.Close()
	a.conf.Unload()
}

func connectDB(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return pool, nil
}

func subscribeLogging(bus eventbus.EventBus, logger *logrus.Logger) {
	bus.Subscribe(func(e services.PurgeCompletedEvent) {
		logger.WithFields(logrus.Fields{
			"session_id": e.SessionID,
			"kind":       e.Kind,
			"mode":       e.Mode,
			"deleted":    e.Deleted,
			"batches":    e.Batches,
		}).Info("purge completed")
	})
	bus.Subscribe(func(e services.RollbackCompletedEvent) {
		entry := logger.WithFields(logrus.Fields{
			"session_id": e.SessionID,
			"deleted":    e.Deleted,
			"failed":     e.Failed,
		})
		if e.Failed > 0 {
			entry.Warn("rollback left records behind")
			return
		}
		entry.Info("rollback completed")
	})
}

func parseKindFlag(v string) (session.Kind, error) {
	kind, err := session.ParseKind(v)
	if err != nil {
		return "", withCode(exitUsage, fmt.Errorf("invalid --kind: %w", err))
	}
	return kind, nil
}
