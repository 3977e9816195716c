package config

import "time"

// MemoryConfig содержит настройки хранилища в памяти.
type MemoryConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env:"CACHE_MEMORY_SWEEP_INTERVAL" env-default:"1m"`
	MaxEntries    int           `yaml:"max_entries" env:"CACHE_MEMORY_MAX_ENTRIES" env-default:"0"`
}
