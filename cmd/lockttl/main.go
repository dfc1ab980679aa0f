package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/pixperk/lockttl/pkg/alarm"
	"github.com/pixperk/lockttl/pkg/config"
	"github.com/pixperk/lockttl/pkg/crypto"
	"github.com/pixperk/lockttl/pkg/deadletter"
	"github.com/pixperk/lockttl/pkg/gateway"
	"github.com/pixperk/lockttl/pkg/reconciler"
	"github.com/pixperk/lockttl/pkg/store"
	"github.com/pixperk/lockttl/pkg/stream"
	"github.com/pixperk/lockttl/pkg/updater"
)

func main() {
	nodeID := uuid.NewString()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("node_id", nodeID)
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("starting lockttl",
		"table", cfg.TableName,
		"stream", cfg.StreamARN,
		"ttl_seconds", cfg.TTLSeconds,
		"batch_size", cfg.BatchSize,
		"concurrency", cfg.ConcurrencyLimit,
		"ttl_automation_enabled", cfg.TTLAutomationEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}

	recordStore := store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.TableName)
	changeStream := stream.NewDynamoStream(dynamodbstreams.NewFromConfig(awsCfg), cfg.StreamARN)

	var cipher crypto.Cipher = crypto.Plaintext{}
	if cfg.KMSKeyID != "" {
		cipher = crypto.NewKMSCipher(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
	}

	spool, err := deadletter.OpenSpool(cfg.SpoolPath, cipher)
	if err != nil {
		logger.Error("failed to open dead-letter spool", "error", err)
		os.Exit(1)
	}
	defer spool.Close()

	sink := deadletter.NewFallbackSink(
		deadletter.NewSQSSink(sqs.NewFromConfig(awsCfg), cfg.QueueURL),
		spool,
		cfg.SinkRetryAttempts,
		logger,
	)

	alarms := alarm.NewEvaluator(cfg.AlarmWindow, cfg.AlarmThreshold, alarm.LogNotifier{Logger: logger})
	go alarms.Run(ctx)

	gw := gateway.NewServer(cfg.HTTPListenAddr)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPListenAddr)
		if err := gw.Start(); err != nil {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	if cfg.TTLAutomationEnabled {
		upd := updater.New(updater.Config{
			Store: recordStore,
			Sink:  sink,
			Policy: updater.RetryPolicy{
				MaxAttempts:  cfg.MaxRetryAttempts,
				MaxRecordAge: cfg.MaxRecordAge,
			},
			TTL:    time.Duration(cfg.TTLSeconds) * time.Second,
			Grace:  cfg.GracePeriod,
			Alarms: alarms,
			Logger: logger,
		})

		rec := reconciler.New(reconciler.Config{
			Stream:        changeStream,
			Updater:       upd,
			Sink:          sink,
			Alarms:        alarms,
			BatchSize:     cfg.BatchSize,
			Concurrency:   cfg.ConcurrencyLimit,
			HandleTimeout: cfg.HandleTimeout,
			Logger:        logger,
		})

		go func() {
			if err := rec.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("reconciler failed", "error", err)
				stop()
			}
		}()
	} else {
		logger.Info("ttl automation disabled, serving metrics only")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}
