// Package app builds the components shared by the brandguard binaries from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"brandguard/internal/artifacts"
	"brandguard/internal/config"
	"brandguard/internal/events"
	"brandguard/internal/logging"
	"brandguard/internal/mentions"
	"brandguard/internal/model"
	"brandguard/internal/session"
	"brandguard/internal/users"
	"brandguard/internal/web"
)

const shutdownTimeout = 10 * time.Second

// Setup loads and validates the configuration and builds the logger.
func Setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	if cfg.File == "" {
		logger.Warn("config file not found, relying on defaults and environment variables")
	} else {
		logger.Info("config loaded", zap.String("file", cfg.File))
	}
	return cfg, logger, nil
}

// AWSSession creates an AWS session for the configured region. Credentials
// come from the usual SDK chain.
func AWSSession(cfg *config.Config) (*awssession.Session, error) {
	sess, err := awssession.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return sess, nil
}

// LoadPipeline reads the vectorizer and classifier from disk or S3.
func LoadPipeline(ctx context.Context, cfg *config.Config, fetcher *artifacts.Fetcher) (*model.Pipeline, error) {
	vr, err := fetcher.Open(ctx, cfg.Model.Vectorizer)
	if err != nil {
		return nil, err
	}
	defer vr.Close()

	cr, err := fetcher.Open(ctx, cfg.Model.Classifier)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	p, err := model.LoadPipeline(vr, cr)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return p, nil
}

// OpenSessions returns the configured session store.
func OpenSessions(ctx context.Context, cfg *config.Config) (session.Store, error) {
	opts := session.Options{TTL: cfg.Session.TTL, HistorySize: cfg.Session.HistorySize}
	if cfg.Session.Store == "redis" {
		return session.OpenRedis(ctx, session.RedisOptions{
			Address:  cfg.Session.Redis.Address,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		}, opts)
	}
	return session.NewMemoryStore(opts), nil
}

// NewPublisher returns a Kafka publisher when brokers are configured.
func NewPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if cfg.Kafka.Brokers == "" {
		return events.Nop{}
	}
	logger.Info("publishing prediction events",
		zap.String("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic))
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
}

// NewWebServer loads the mention and credential tables and builds the web
// server around predictor. The returned closer releases the session store and
// the event publisher.
func NewWebServer(ctx context.Context, cfg *config.Config, predictor model.Predictor, logger *zap.Logger) (*web.Server, io.Closer, error) {
	table, err := mentions.LoadFile(cfg.Data.Mentions, cfg.Data.Columns)
	if err != nil {
		return nil, nil, err
	}
	if table.Len() == 0 {
		logger.Warn("mentions file has no rows", zap.String("file", cfg.Data.Mentions))
	}
	mapping := table.Mapping()
	logger.Info("mentions loaded",
		zap.Int("rows", table.Len()),
		zap.String("text", mapping.Text),
		zap.String("brand", mapping.Brand),
		zap.String("sentiment", mapping.Sentiment))

	dir, err := users.LoadFile(cfg.Data.Users)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("users loaded", zap.Int("users", dir.Len()))

	sessions, err := OpenSessions(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	publisher := NewPublisher(cfg, logger)

	srv, err := web.NewServer(table, dir, sessions, predictor, publisher, logger, web.Options{
		SessionCookie: cfg.HTTP.SessionCookie,
		SecureCookies: cfg.HTTP.SecureCookies,
		Stream: web.StreamOptions{
			BatchSize:  cfg.Stream.BatchSize,
			Interval:   cfg.Stream.Interval,
			Iterations: cfg.Stream.Iterations,
			Window:     cfg.Stream.Window,
			Threshold:  cfg.Stream.Threshold,
		},
	})
	if err != nil {
		sessions.Close()
		publisher.Close()
		return nil, nil, err
	}
	return srv, closers{sessions, publisher}, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully. Request contexts are cancelled with ctx so open event
// streams end promptly.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return serve(ctx, ln, handler, logger)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
