// Package config предоставляет функциональность для загрузки конфигурации с помощью cleanenv.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"

	"coffeecache/pkg/logger"
)

const (
	msgLoadingConfiguration    = "loading configuration file"
	msgConfigurationLoaded     = "configuration file loaded successfully"
	msgFailedLoadConfiguration = "failed to load configuration file"

	errEmptyPath               = "configuration file path is empty"
	errFailedLoadConfiguration = "failed to load configuration"

	attrPath   = "path"
	attrFormat = "format"
)

// ErrEmptyPath возвращается, если путь к файлу не задан.
var ErrEmptyPath = errors.New(errEmptyPath)

// LoadFile заполняет T из файла, а затем из переменных окружения.
// Формат определяется расширением (.yaml, .yml, .json, .toml, .env),
// переменные окружения перекрывают значения из файла.
func LoadFile[T any](ctx context.Context, path string) (*T, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	log, err := logger.FromContext(ctx)
	if err != nil {
		log = logger.Log(ctx)
		ctx = logger.NewContext(ctx, log)
	}

	log.Info(ctx, msgLoadingConfiguration,
		zap.String(attrPath, path),
		zap.String(attrFormat, filepath.Ext(path)))

	if _, err := os.Stat(path); err != nil {
		log.Error(ctx, msgFailedLoadConfiguration, zap.String(attrPath, path), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errFailedLoadConfiguration, err)
	}

	var cfg T
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		log.Error(ctx, msgFailedLoadConfiguration, zap.String(attrPath, path), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errFailedLoadConfiguration, err)
	}

	log.Info(ctx, msgConfigurationLoaded, zap.String(attrPath, path))

	return &cfg, nil
}
