// Package config is the env-driven configuration surface for
// imagecached: one independently-namespaced struct per tunable
// subsystem (memory tier, disk tier, downloader, concurrency limiter)
// instead of a single flat struct.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/dustin/go-humanize"
)

// ByteSize parses human sizes like "10MB", "500KB", "1GB".
type ByteSize int64

func (b *ByteSize) UnmarshalText(data []byte) error {
	value := strings.TrimSpace(strings.ToUpper(string(data)))
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(value, "GB"):
		multiplier = 1 << 30
		value = strings.TrimSuffix(value, "GB")
	case strings.HasSuffix(value, "MB"):
		multiplier = 1 << 20
		value = strings.TrimSuffix(value, "MB")
	case strings.HasSuffix(value, "KB"):
		multiplier = 1 << 10
		value = strings.TrimSuffix(value, "KB")
	case strings.HasSuffix(value, "B"):
		multiplier = 1
		value = strings.TrimSuffix(value, "B")
	}
	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	*b = ByteSize(num * float64(multiplier))
	return nil
}

// MemoryConfig configures the in-memory cache tier.
type MemoryConfig struct {
	MaxCost  ByteSize `env:"MAX_COST" envDefault:"50MB"`
	MaxCount int      `env:"MAX_COUNT" envDefault:"100"`
}

// DiskConfig configures the on-disk cache tier.
type DiskConfig struct {
	Directory     string        `env:"DIRECTORY" envDefault:"ImageCache"`
	MaxBytes      ByteSize      `env:"MAX_BYTES" envDefault:"100MB"`
	MaxAge        time.Duration `env:"MAX_AGE" envDefault:"168h"` // 7 days; 0 disables TTL
	Quality       int           `env:"QUALITY" envDefault:"80"`   // 1-100, ~0.8 on a 0-1 scale
	EnableLogging bool          `env:"ENABLE_LOGGING" envDefault:"true"`
}

// DownloadConfig configures the downloader.
type DownloadConfig struct {
	MaxRetries    int               `env:"MAX_RETRIES" envDefault:"3"`
	RetryDelay    time.Duration     `env:"RETRY_DELAY" envDefault:"500ms"`
	Timeout       time.Duration     `env:"TIMEOUT" envDefault:"30s"`
	Headers       map[string]string `env:"HEADERS" envSeparator:"," envKeyValSeparator:":"`
	EnableLogging bool              `env:"ENABLE_LOGGING" envDefault:"true"`
}

// LimiterConfig configures the concurrency limiter.
type LimiterConfig struct {
	MaxConcurrent int     `env:"MAX_CONCURRENT" envDefault:"6"`
	RPS           float64 `env:"RPS" envDefault:"0"` // 0 disables the rate limiter
}

// Config is the full, independently-namespaced configuration tree.
type Config struct {
	Memory   MemoryConfig   `envPrefix:"IMAGECACHE_MEMORY_"`
	Disk     DiskConfig     `envPrefix:"IMAGECACHE_DISK_"`
	Download DownloadConfig `envPrefix:"IMAGECACHE_DOWNLOAD_"`
	Limiter  LimiterConfig  `envPrefix:"IMAGECACHE_LIMITER_"`

	ListenAddr string `env:"IMAGECACHE_LISTEN_ADDR" envDefault:":8080"`
}

// Print dumps the resolved configuration via log.Info, matching the
// teacher's Config.Print() in spirit: byte sizes go through humanize,
// everything else prints as-is.
func (c *Config) Print() {
	log.Info("Config:")
	log.Info("  ListenAddr: %s", c.ListenAddr)
	log.Info("  Memory.MaxCost: %s", humanize.IBytes(uint64(c.Memory.MaxCost)))
	log.Info("  Memory.MaxCount: %d", c.Memory.MaxCount)
	log.Info("  Disk.Directory: %s", c.Disk.Directory)
	log.Info("  Disk.MaxBytes: %s", humanize.IBytes(uint64(c.Disk.MaxBytes)))
	log.Info("  Disk.MaxAge: %s", c.Disk.MaxAge)
	log.Info("  Disk.Quality: %d", c.Disk.Quality)
	log.Info("  Download.MaxRetries: %d", c.Download.MaxRetries)
	log.Info("  Download.RetryDelay: %s", c.Download.RetryDelay)
	log.Info("  Download.Timeout: %s", c.Download.Timeout)
	log.Info("  Limiter.MaxConcurrent: %d", c.Limiter.MaxConcurrent)
	log.Info("  Limiter.RPS: %v", c.Limiter.RPS)
}
