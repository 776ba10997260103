package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"brandguard/internal/app"
	"brandguard/internal/queue"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "web-tier",
	Short:        "Dashboard and prediction API backed by the app tier over SQS",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yml or ./config/config.yml)")
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := app.AWSSession(cfg)
	if err != nil {
		return err
	}
	client := queue.NewClient(sqs.New(sess), queue.Queues{
		RequestURL:  cfg.Queue.RequestURL,
		ResponseURL: cfg.Queue.ResponseURL,
	}, cfg.Queue.WaitSeconds, cfg.Queue.Timeout, logger)

	srv, closer, err := app.NewWebServer(ctx, cfg, client, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return err
	}
	defer closer.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx)
	})
	g.Go(func() error {
		return app.Serve(ctx, ":"+cfg.HTTP.Port, srv.Handler(), logger)
	})
	return g.Wait()
}
