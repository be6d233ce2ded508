// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package log exports a logger used throughout imq.
package log

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Level represents logging level.
type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// Base supports logging at various log levels.
// User-provided loggers passed into imq.Config.Logger must satisfy this
// interface.
type Base interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
}

// Logger wraps a Base logger and gates calls by level.
type Logger struct {
	mu     sync.Mutex
	base   Base
	level  Level
}

// NewLogger returns a Logger that writes through base.
// If base is nil, a default logger that writes to stderr is used.
func NewLogger(base Base) *Logger {
	if base == nil {
		base = newDefaultLogger()
	}
	return &Logger{base: base, level: InfoLevel}
}

// SetLevel sets the minimum level at which messages are passed through
// to the underlying Base logger.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) shouldLog(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

func (l *Logger) Debug(args ...interface{}) {
	if l.shouldLog(DebugLevel) {
		l.base.Debug(args...)
	}
}

func (l *Logger) Info(args ...interface{}) {
	if l.shouldLog(InfoLevel) {
		l.base.Info(args...)
	}
}

func (l *Logger) Warn(args ...interface{}) {
	if l.shouldLog(WarnLevel) {
		l.base.Warn(args...)
	}
}

func (l *Logger) Error(args ...interface{}) {
	if l.shouldLog(ErrorLevel) {
		l.base.Error(args...)
	}
}

func (l *Logger) Fatal(args ...interface{}) {
	l.base.Fatal(args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.shouldLog(DebugLevel) {
		l.base.Debug(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.shouldLog(InfoLevel) {
		l.base.Info(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.shouldLog(WarnLevel) {
		l.base.Warn(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.shouldLog(ErrorLevel) {
		l.base.Error(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.base.Fatal(fmt.Sprintf(format, args...))
}

// defaultLogger writes to os.Stderr via the standard log package,
// prefixed with the level name.
type defaultLogger struct {
	*log.Logger
}

func newDefaultLogger() *defaultLogger {
	return &defaultLogger{log.New(os.Stderr, "imq: ", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC)}
}

func (l *defaultLogger) Debug(args ...interface{}) { l.prefixPrint("DEBUG: ", args...) }
func (l *defaultLogger) Info(args ...interface{})  { l.prefixPrint("INFO: ", args...) }
func (l *defaultLogger) Warn(args ...interface{})  { l.prefixPrint("WARN: ", args...) }
func (l *defaultLogger) Error(args ...interface{}) { l.prefixPrint("ERROR: ", args...) }
func (l *defaultLogger) Fatal(args ...interface{}) {
	l.prefixPrint("FATAL: ", args...)
	os.Exit(1)
}

func (l *defaultLogger) prefixPrint(prefix string, args ...interface{}) {
	args = append([]interface{}{prefix}, args...)
	l.Logger.Print(args...)
}
