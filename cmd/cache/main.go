package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"coffeecache/internal/cache/app"
	"coffeecache/internal/cache/client"
	"coffeecache/internal/cache/config"
	"coffeecache/pkg/logger"
	"coffeecache/pkg/shutdown"
)

// Переменные окружения, читаемые до загрузки конфигурации.
const (
	EnvLoggerMode  = "CACHE_LOGGER_MODE"
	EnvLoggerLevel = "CACHE_LOGGER_LEVEL"
)

// Константы для сообщений об ошибках.
const (
	ErrInitLogger           = "failed to initialize logger"
	ErrSyncLogger           = "failed to sync logger"
	ErrLoadConfig           = "failed to load configuration"
	ErrInitLoggerWithConfig = "failed to initialize logger with configuration settings"
	ErrCreateClient         = "failed to create cache client"
	ErrProbe                = "cache readiness probe failed"
	ErrShutdown             = "shutdown finished with errors"
)

// Ошибки Sync, которые zap возвращает для терминалов, игнорируются.
const (
	ErrSyncStderr = "sync /dev/stderr: invalid argument"
	ErrSyncStdout = "sync /dev/stdout: invalid argument"
)

// Константы для сообщений сервиса.
const (
	LogServiceStarted      = "cache service started"
	LogServiceShutdownDone = "cache service shutdown complete"
	LogInitClient          = "initializing cache client"
	LogProbeOK             = "cache readiness probe passed"
	LogClosingClient       = "closing cache client"
)

const probeTTL = 10 * time.Second

func main() {
	env := logger.Development
	if strings.ToLower(os.Getenv(EnvLoggerMode)) == "production" {
		env = logger.Production
	}

	log, err := logger.NewLogger(env, os.Getenv(EnvLoggerLevel))
	if err != nil {
		panic(ErrInitLogger + ": " + err.Error())
	}

	logger.SetGlobalLogger(log)

	ctx := logger.NewContext(logger.NewRequestIDContext(context.Background(), ""), log)

	var exitCode int

	func() {
		defer func() {
			if err := log.Sync(); err != nil {
				errMsg := err.Error()
				if strings.Contains(errMsg, ErrSyncStderr) || strings.Contains(errMsg, ErrSyncStdout) {
					return
				}
				if _, writeErr := fmt.Fprintf(os.Stderr, "%s: %v\n", ErrSyncLogger, err); writeErr != nil {
					panic(writeErr)
				}
			}
		}()

		cfg, err := config.Load(ctx)
		if err != nil {
			log.Error(ctx, ErrLoadConfig, zap.Error(err))
			exitCode = 1
			return
		}

		finalLogger, err := logger.NewLogger(cfg.Logging.GetEnvironment(), cfg.Logging.Level)
		if err != nil {
			log.Error(ctx, ErrInitLoggerWithConfig, zap.Error(err))
			exitCode = 1
			return
		}
		logger.SetGlobalLogger(finalLogger)
		log = finalLogger
		ctx = logger.NewContext(ctx, log)

		log.Info(ctx, LogServiceStarted,
			zap.String("environment", string(cfg.Logging.GetEnvironment())),
			zap.String("log_level", cfg.Logging.Level),
			zap.String("backend", cfg.Cache.Backend),
			zap.String("startup_time", time.Now().Format(time.RFC3339)))

		log.Info(ctx, LogInitClient)
		cacheClient, err := app.NewClient(ctx, cfg, prometheus.DefaultRegisterer)
		if err != nil {
			log.Error(ctx, ErrCreateClient, zap.Error(err))
			exitCode = 1
			return
		}

		if err := probe(ctx, cacheClient); err != nil {
			log.Error(ctx, ErrProbe, zap.Error(err))
			_ = cacheClient.Close()
			exitCode = 1
			return
		}
		log.Info(ctx, LogProbeOK)

		err = shutdown.Wait(ctx, cfg.Shutdown.GetTimeout(),
			func(ctx context.Context) error {
				log.Info(ctx, LogClosingClient)
				return cacheClient.Close()
			},
		)
		if err != nil {
			log.Error(ctx, ErrShutdown, zap.Error(err))
			exitCode = 1
		}

		log.Info(ctx, LogServiceShutdownDone)
	}()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// probe записывает, читает и удаляет уникальный ключ.
func probe(ctx context.Context, c *client.Client) error {
	key := "coffeecache:probe:" + logger.GenerateRequestID()
	want := time.Now().UTC().Format(time.RFC3339Nano)

	if err := c.Write(ctx, key, want, probeTTL); err != nil {
		return err
	}

	got, err := c.Read(ctx, key)
	if err != nil {
		return err
	}
	if value, ok := got.Get(); !ok || value != want {
		return errors.New("probe value mismatch")
	}

	return c.Delete(ctx, key)
}
