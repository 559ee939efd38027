package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"fraudserve/internal/infrastructure/kafka"
	"fraudserve/internal/infrastructure/redis"
	"fraudserve/internal/interfaces/stream"
	"fraudserve/internal/shared/bootstrap"
	"fraudserve/internal/shared/config"
	"fraudserve/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("[Streamer] %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log.SetHeader("${time_rfc3339} ${level}")
	log.SetLevel(log.INFO)
	if cfg.Debug.PipelineColumns {
		log.SetLevel(log.DEBUG)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:    "fraudserve-streamer",
			ServiceVersion: cfg.Artifacts.Version,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			MetricsPort:    cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warnf("[Streamer] Telemetry shutdown error: %v", err)
			}
		}()
	}

	artifacts, err := bootstrap.LoadArtifacts(ctx, cfg)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	pipeline, err := bootstrap.NewPipeline(cfg, artifacts)
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Broker)
	if err != nil {
		return err
	}
	defer producer.Close()

	var opts []stream.Option
	if len(cfg.Redis.Addrs) > 0 {
		client := redis.NewClient(cfg.Redis.Addrs)
		defer client.Close()
		if err := redis.WaitReady(ctx, client, 30, 2*time.Second); err != nil {
			return err
		}
		opts = append(opts, stream.WithDeduper(redis.NewDeduper(client, cfg.Redis.DedupeTTL)))
		log.Infof("[Streamer] Deduplicating redeliveries via Redis %v", cfg.Redis.Addrs)
	}

	scorer := stream.NewScorer(pipeline, producer, stream.Topics{
		Output: cfg.Kafka.OutputTopic,
		DLQ:    cfg.Kafka.DLQTopic,
	}, opts...)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Broker:      cfg.Kafka.Broker,
		GroupID:     cfg.Kafka.GroupID,
		Topics:      []string{cfg.Kafka.InputTopic},
		CommitEvery: cfg.Kafka.CommitEvery,
	})
	if err != nil {
		return err
	}
	defer consumer.Close()

	log.Infof("[Streamer] Scoring %s -> %s (dlq %s) with %s",
		cfg.Kafka.InputTopic, cfg.Kafka.OutputTopic, cfg.Kafka.DLQTopic, pipeline)
	return consumer.Run(ctx, scorer.Handle)
}
