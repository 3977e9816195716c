package config

import "coffeecache/pkg/logger"

// LoggingConfig содержит настройки логирования.
type LoggingConfig struct {
	Level string `yaml:"level" env:"CACHE_LOGGER_LEVEL" env-default:"info"`
	Mode  string `yaml:"mode" env:"CACHE_LOGGER_MODE" env-default:"production"`
}

// GetEnvironment возвращает окружение логгера по Mode.
func (c *LoggingConfig) GetEnvironment() logger.Environment {
	if c.Mode == "development" {
		return logger.Development
	}
	return logger.Production
}
