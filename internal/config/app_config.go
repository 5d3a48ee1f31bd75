package config

import (
	"time"
)

type AppConfig struct {
	Port           int           `yaml:"port" env:"APP_PORT" env-default:"8080"`
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"APP_DEFAULT_TIMEOUT" env-default:"10s"`
	// MaxBodyBytes caps the size of an uploaded transcript.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"APP_MAX_BODY_BYTES" env-default:"16777216"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"pretty"`
}

// AnalysisConfig holds the default query thresholds. DiskCapacity set to a
// non-zero value makes the deletion threshold derived from the free space
// still missing instead of DeletionThreshold.
type AnalysisConfig struct {
	SmallDirThreshold uint64 `yaml:"small_dir_threshold" env:"ANALYSIS_SMALL_DIR_THRESHOLD" env-default:"100000"`
	DeletionThreshold uint64 `yaml:"deletion_threshold" env:"ANALYSIS_DELETION_THRESHOLD" env-default:"0"`
	DiskCapacity      uint64 `yaml:"disk_capacity" env:"ANALYSIS_DISK_CAPACITY"`
	RequiredFree      uint64 `yaml:"required_free" env:"ANALYSIS_REQUIRED_FREE" env-default:"30000000"`
	// ParallelDepth > 0 sizes the top levels of the tree concurrently.
	ParallelDepth int `yaml:"parallel_depth" env:"ANALYSIS_PARALLEL_DEPTH" env-default:"0"`
}
