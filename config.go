// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"fmt"
	"strings"
	"time"

	"github.com/hemant/imq/internal/base"
	"github.com/hemant/imq/internal/log"
	"github.com/hemant/imq/internal/timeutil"
)

// Logger supports logging at various log levels. Implement this to plug in
// a structured logger; if Config.Logger is unset a default logger writing
// to stderr is used.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
}

// LogLevel represents logging level.
type LogLevel int32

const (
	level_unspecified LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l *LogLevel) String() string {
	switch *l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	}
	panic(fmt.Sprintf("imq: unexpected log level: %v", *l))
}

func (l *LogLevel) Set(val string) error {
	switch strings.ToLower(val) {
	case "debug":
		*l = DebugLevel
	case "info":
		*l = InfoLevel
	case "warn", "warning":
		*l = WarnLevel
	case "error":
		*l = ErrorLevel
	case "fatal":
		*l = FatalLevel
	default:
		return fmt.Errorf("imq: unsupported log level %q", val)
	}
	return nil
}

func toInternalLogLevel(l LogLevel) log.Level {
	switch l {
	case DebugLevel:
		return log.DebugLevel
	case InfoLevel:
		return log.InfoLevel
	case WarnLevel:
		return log.WarnLevel
	case ErrorLevel:
		return log.ErrorLevel
	case FatalLevel:
		return log.FatalLevel
	}
	panic(fmt.Sprintf("imq: unexpected log level: %v", l))
}

const (
	defaultWatcherCheckDelay = 5 * time.Second
	defaultSafeDeliveryTTL   = 5 * time.Second
	defaultHealthCheckDelay  = 15 * time.Second
	defaultStatsInterval     = 8 * time.Second
)

// Config specifies connection, codec, and delivery-mode options for a
// Queue. All fields are optional; the zero value of Config selects the
// defaults noted per field.
type Config struct {
	// Host and Port name the Redis-compatible server to connect to.
	// Default "localhost":6379.
	Host string
	Port int

	// Prefix namespaces every key this library touches. Default "imq".
	Prefix string

	// Logger receives structured log output. Default: console logger.
	Logger Logger

	// LogLevel sets the minimum level enabled on Logger. Default InfoLevel.
	LogLevel LogLevel

	// WatcherCheckDelay is reserved for a future watcher heartbeat.
	// Default 5s.
	WatcherCheckDelay time.Duration

	// UseGzip selects the gzip-of-JSON codec instead of plain JSON.
	UseGzip bool

	// SafeDelivery enables at-least-once delivery via a per-worker list.
	SafeDelivery bool

	// SafeDeliveryTTL is the grace period before an in-flight worker list
	// is considered stalled and rescued by the watcher. Default 5s.
	SafeDeliveryTTL time.Duration

	// HealthCheckFunc, if set, is invoked with the result of a periodic
	// PING against the writer connection.
	HealthCheckFunc func(error)

	// HealthCheckInterval is the period between healthchecks. Default 15s.
	HealthCheckInterval time.Duration

	// StatsInterval is the period between queue-depth log emissions by the
	// stats janitor. Default 8s. Set to a negative value to disable.
	StatsInterval time.Duration

	// Clock is the time source used to compute delayed-delivery due times
	// and to evaluate sweeper/expiry deadlines. Default timeutil.RealClock.
	// Tests may substitute a timeutil.SimulatedClock for deterministic
	// control over delayed-visibility and safe-delivery rescue timing.
	Clock timeutil.Clock
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = base.DefaultHost
	}
	if c.Port == 0 {
		c.Port = base.DefaultPort
	}
	if c.Prefix == "" {
		c.Prefix = base.DefaultPrefix
	}
	if c.WatcherCheckDelay == 0 {
		c.WatcherCheckDelay = defaultWatcherCheckDelay
	}
	if c.SafeDeliveryTTL == 0 {
		c.SafeDeliveryTTL = defaultSafeDeliveryTTL
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaultHealthCheckDelay
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = defaultStatsInterval
	}
	if c.Clock == nil {
		c.Clock = timeutil.NewRealClock()
	}
	return c
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
