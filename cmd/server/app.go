package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"video-share-service/internal/config"
	"video-share-service/internal/domain/repositories"
	"video-share-service/internal/logger"
	"video-share-service/internal/messaging"
	"video-share-service/internal/metrics"
	"video-share-service/internal/notify"
	"video-share-service/internal/organization"
	"video-share-service/internal/storage"
)

const serviceName = "video-share-service"

// app holds the infrastructure shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Metrics
	registry *organization.Registry
	db       *sqlx.DB

	videos repositories.VideoRepository
	shares repositories.ShareRepository
	syncs  repositories.ShareSyncRepository

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.NewLogger(logger.Config{
		Level:         cfg.Log.Level,
		ServiceName:   serviceName,
		FilePath:      cfg.Log.File,
		ConsoleOutput: true,
		JSONFormat:    cfg.Log.JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.WithField("organization", cfg.Organization.Current)

	registry, err := organization.NewRegistry(cfg.Organization.Current, cfg.Organization.Peers)
	if err != nil {
		return nil, fmt.Errorf("organization registry: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db, err := storage.NewDBConnection(connectCtx, cfg.Database.Postgres, log)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(connectCtx, db); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.New(),
		registry: registry,
		db:       db,
		videos:   repositories.NewVideoRepository(db),
		shares:   repositories.NewShareRepository(db),
		syncs:    repositories.NewShareSyncRepository(db),
	}
	a.onClose(func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("close database")
		}
	})
	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close runs the registered closers in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) artifactStore(ctx context.Context) (storage.ArtifactStore, error) {
	return storage.NewArtifactStore(ctx, a.cfg.Storage, a.log)
}

func (a *app) producer() (*messaging.KafkaProducer, error) {
	p, err := messaging.NewKafkaProducer(a.cfg.Kafka.Brokers, serviceName, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		if err := p.Close(); err != nil {
			a.log.WithError(err).Warn("close kafka producer")
		}
	})
	return p, nil
}

// progressNotifier publishes progress events to the progress topic.
func (a *app) progressNotifier(p messaging.Publisher) notify.Notifier {
	n := notify.NewAsync(notify.NewKafkaSink(p, a.cfg.Kafka.Topics.Progress), 256, a.log)
	a.onClose(n.Close)
	return n
}
