// Command authkit-server runs the authkit JSON API.
//
// Configuration comes from the environment (and a .env file when present);
// see serverConfig for the variables. Without REDIS_ADDR an embedded
// miniredis is started, which loses every session on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/captcha"
	"github.com/MrEthical07/authkit/internal/httpapi"
	"github.com/MrEthical07/authkit/mail"
	"github.com/MrEthical07/authkit/settings"
	"github.com/MrEthical07/authkit/store/sqlstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogDev, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, logger *zap.Logger) error {
	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		MaxConns: cfg.DBConns,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	defaults := settings.NewTemplate(nil)
	if cfg.SettingsFile != "" {
		if defaults, err = settings.LoadTemplateFile(cfg.SettingsFile); err != nil {
			return err
		}
	}

	cv, err := captcha.NewSessionValidator(6, 10*time.Minute)
	if err != nil {
		return err
	}

	engine, err := authkit.New().
		WithConfig(cfg.engineConfig()).
		WithRedis(rdb).
		WithUserStore(store).
		WithSettingStore(store).
		WithMailer(mailer).
		WithCaptcha(cv).
		WithDefaults(defaults).
		WithLogger(logger).
		WithAuditSink(authkit.NewZapSink(logger)).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	srv, err := httpapi.New(engine, httpapi.Options{
		Logger:    logger,
		Captcha:   cv,
		RateLimit: rate.Limit(cfg.RateLimit),
		RateBurst: cfg.RateBurst,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRedis(cfg serverConfig, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		logger.Warn("REDIS_ADDR not set, using embedded miniredis", zap.String("addr", mr.Addr()))
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }, nil
}

func newMailer(cfg serverConfig, logger *zap.Logger) (authkit.Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, mail is only logged")
		return mail.NewLogSender(logger), nil
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
	}, logger)
	if err != nil {
		return nil, err
	}
	return sender, nil
}
