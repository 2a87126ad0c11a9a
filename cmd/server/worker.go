package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"video-share-service/internal/encoder"
	"video-share-service/internal/messaging"
	"video-share-service/internal/notify"
	"video-share-service/internal/services"
	"video-share-service/internal/storage"
)

func newWorkerCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume transcode work items only",
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

			store, err := a.artifactStore(ctx)
			if err != nil {
				return err
			}
			producer, err := a.producer()
			if err != nil {
				return err
			}
			consumer, err := a.transcodeConsumer(store, producer, a.progressNotifier(producer))
			if err != nil {
				return err
			}
			a.log.Info("transcode worker started")
			err = consumer.Run(ctx)
			a.log.Info("transcode worker stopped")
			return err
		},
	}
}

// transcodeConsumer wires the work topic to the transcode worker.
func (a *app) transcodeConsumer(store storage.ArtifactStore, producer messaging.Publisher, notifier notify.Notifier) (*messaging.KafkaConsumer, error) {
	transcoder := services.NewTranscodeService(a.videos, store, encoder.NewFFmpeg(a.cfg.Processing.FFmpegPath),
		notifier, a.cfg.Processing, a.metrics, a.log)
	handler := services.NewTranscodeJobHandler(transcoder, producer, a.cfg.Kafka.Topics.Result, a.log)

	consumer, err := messaging.NewKafkaConsumer(a.cfg.Kafka.Brokers, a.cfg.Kafka.ConsumerGroup, a.log)
	if err != nil {
		return nil, err
	}
	consumer.RegisterHandler(a.cfg.Kafka.Topics.Work, handler)
	a.onClose(func() {
		if err := consumer.Close(); err != nil {
			a.log.WithError(err).Warn("close kafka consumer")
		}
	})
	return consumer, nil
}

func isShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
