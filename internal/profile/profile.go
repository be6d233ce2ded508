// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package profile implements the optional timing/argument-logging decorator
// described for imq's operations. It is controlled entirely through
// environment variables so that it can be toggled without touching call
// sites.
package profile

import (
	"os"
	"strconv"
	"time"

	"github.com/hemant/imq/internal/log"
)

// TimeFormat selects the unit used when logging elapsed wall-clock time.
type TimeFormat int

const (
	Microseconds TimeFormat = iota
	Milliseconds
	Seconds
)

func timeFormatFromEnv() TimeFormat {
	switch os.Getenv("IMQ_LOG_TIME_FORMAT") {
	case "milliseconds":
		return Milliseconds
	case "seconds":
		return Seconds
	default:
		return Microseconds
	}
}

func enabled(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}

// Wrap decorates fn so that, when either IMQ_LOG_TIME or IMQ_LOG_ARGS is
// enabled, it records wall-clock duration and/or the given args and writes
// one line per enabled channel to logger at Debug level. If neither is
// enabled, Wrap returns fn unchanged behavior: fn is invoked and its result
// passed through untouched either way.
func Wrap(logger *log.Logger, name string, args []interface{}, fn func() (interface{}, error)) (interface{}, error) {
	logTime := enabled("IMQ_LOG_TIME")
	logArgs := enabled("IMQ_LOG_ARGS")
	if !logTime && !logArgs {
		return fn()
	}

	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)

	if logArgs {
		logger.Debugf("%s args=%v", name, args)
	}
	if logTime {
		logger.Debugf("%s took %s", name, formatElapsed(elapsed, timeFormatFromEnv()))
	}
	return result, err
}

func formatElapsed(d time.Duration, f TimeFormat) string {
	switch f {
	case Milliseconds:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	case Seconds:
		return strconv.FormatFloat(d.Seconds(), 'f', 6, 64) + "s"
	default:
		return strconv.FormatInt(d.Microseconds(), 10) + "us"
	}
}
