package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brandguard/internal/app"
	"brandguard/internal/artifacts"
	"brandguard/internal/model"
	"brandguard/internal/queue"
)

var (
	configPath string
	workers    int
)

var rootCmd = &cobra.Command{
	Use:          "app-tier",
	Short:        "Classify mentions from the SQS request queue",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yml or ./config/config.yml)")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "concurrent pollers (defaults to queue.workers)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, logger, err := app.Setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.ValidateQueue(); err != nil {
		logger.Error("invalid queue config", zap.Error(err))
		return err
	}
	if workers > 0 {
		cfg.Queue.Workers = workers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := app.AWSSession(cfg)
	if err != nil {
		return err
	}

	// Artifacts may live in S3 so every app tier instance serves the same model.
	pipeline, err := app.LoadPipeline(ctx, cfg, artifacts.NewFetcher(s3.New(sess)))
	if err != nil {
		logger.Error("failed to load model", zap.Error(err))
		return err
	}
	logger.Info("model loaded",
		zap.String("vectorizer", cfg.Model.Vectorizer),
		zap.String("classifier", cfg.Model.Classifier),
		zap.Int("features", pipeline.Vectorizer.Features()))

	worker := queue.NewWorker(sqs.New(sess), queue.Queues{
		RequestURL:  cfg.Queue.RequestURL,
		ResponseURL: cfg.Queue.ResponseURL,
	}, model.NewLocalPredictor(pipeline), cfg.Queue.Workers, cfg.Queue.WaitSeconds, logger)

	return worker.Run(ctx)
}
