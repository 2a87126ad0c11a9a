package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"video-share-service/internal/api"
	"video-share-service/internal/auth"
	"video-share-service/internal/peer"
	"video-share-service/internal/services"
	"video-share-service/internal/workerpool"
)

func newServeCommand(load configLoader) *cobra.Command {
	var withoutWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the sync reconciler and the transcode worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx, !withoutWorker)
		},
	}
	cmd.Flags().BoolVar(&withoutWorker, "no-worker", false, "Do not consume transcode work items in this process")
	return cmd
}

func (a *app) serve(ctx context.Context, withWorker bool) error {
	cfg := a.cfg

	store, err := a.artifactStore(ctx)
	if err != nil {
		return err
	}
	producer, err := a.producer()
	if err != nil {
		return err
	}
	notifier := a.progressNotifier(producer)

	pool := workerpool.New(cfg.Share.PoolSize, a.log.WithField("component", "sync-pool"))
	a.metrics.RegisterPool("share-sync", pool)
	a.onClose(pool.Stop)

	peerClient := peer.NewClient(cfg.Share.PeerTimeout, a.log.WithField("component", "peer-client"))

	videoSvc := services.NewVideoService(a.videos, a.shares, store, producer, notifier,
		cfg.Kafka.Topics.Work, cfg.Processing.TempDir, cfg.Storage.PresignTTL, a.log)
	shareSvc := services.NewShareService(a.videos, a.shares, store, a.registry, peerClient, pool,
		cfg.Share.TTL, a.metrics, a.log)
	inbound := services.NewSyncInboundService(a.videos, a.shares, a.syncs, store, a.registry, cfg.Share.TTL, a.log)

	reconciler := services.NewSyncReconciler(a.syncs, a.shares, a.registry.Local(), cfg.Reconciler.Interval, a.metrics, a.log)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	consumerDone := make(chan error, 1)
	if withWorker {
		consumer, err := a.transcodeConsumer(store, producer, notifier)
		if err != nil {
			return err
		}
		go func() { consumerDone <- consumer.Run(ctx) }()
	}

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(api.Deps{
			Mode:    cfg.Server.Mode,
			JWT:     auth.NewJWTService(cfg.JWT.Secret, 0),
			Videos:  videoSvc,
			Shares:  shareSvc,
			Sync:    inbound,
			DB:      a.db,
			Metrics: a.metrics.Handler(),
			Log:     a.log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("http server listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = err
	case err := <-consumerDone:
		if !isShutdown(err) {
			runErr = err
		}
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Error("http server shutdown")
	}
	return runErr
}
