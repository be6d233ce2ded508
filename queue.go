// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hemant/imq/internal/base"
	"github.com/hemant/imq/internal/log"
	"github.com/redis/go-redis/v9"
)

// Queue is a single named, distributed message queue bound to a Redis
// server. Each process may instantiate any number of queues, including
// several pointed at the same server and the same name; messages sent to a
// name are delivered to exactly one subscriber of that name (or at least
// one, under safe delivery).
//
// The zero value is not usable; construct with New.
type Queue struct {
	name   string
	cfg    Config
	codec  Codec
	logger *log.Logger

	mu          sync.Mutex
	initialized bool
	destroyed   bool

	writer *redis.Client
	reader *redis.Client

	sendCh   chan *sendJob
	sendDone chan struct{}

	watcherEntry *watcherEntry
	isOwner      bool

	readWg   sync.WaitGroup
	readDone chan struct{}

	healthchecker *healthchecker
	janitor       *janitor

	handlersMu      sync.Mutex
	messageHandlers []MessageHandler
	errorHandlers   []ErrorHandler
}

// MessageHandler is invoked once per delivered envelope (§6: "message").
type MessageHandler func(payload json.RawMessage, id, from string)

// ErrorHandler is invoked on any reportable failure (§6: "error"), tagged
// with the originating source, one of OnMessage, OnWatch, OnConfig,
// OnSafeDelivery, OnScriptLoad, OnReadUnsafe, OnReadSafe, OnProcessDelayed.
type ErrorHandler func(err error, source string)

// Event sources, as enumerated in §6.
const (
	SourceOnMessage        = "OnMessage"
	SourceOnWatch          = "OnWatch"
	SourceOnConfig         = "OnConfig"
	SourceOnSafeDelivery   = "OnSafeDelivery"
	SourceOnScriptLoad     = "OnScriptLoad"
	SourceOnReadUnsafe     = "OnReadUnsafe"
	SourceOnReadSafe       = "OnReadSafe"
	SourceOnProcessDelayed = "OnProcessDelayed"
)

// New returns a Queue bound to name. Call Start to open connections and
// begin reading.
func New(name string, cfg Config) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("imq: queue name must not be empty")
	}
	cfg = cfg.withDefaults()
	logger := log.NewLogger(cfg.Logger)
	logger.SetLevel(toInternalLogLevel(orDefaultLevel(cfg.LogLevel)))
	return &Queue{
		name:   name,
		cfg:    cfg,
		codec:  NewCodec(cfg.UseGzip),
		logger: logger,
	}, nil
}

func orDefaultLevel(l LogLevel) LogLevel {
	if l == level_unspecified {
		return InfoLevel
	}
	return l
}

// OnMessage registers a handler invoked for every delivered envelope.
func (q *Queue) OnMessage(h MessageHandler) {
	q.handlersMu.Lock()
	defer q.handlersMu.Unlock()
	q.messageHandlers = append(q.messageHandlers, h)
}

// OnError registers a handler invoked on reportable failures.
func (q *Queue) OnError(h ErrorHandler) {
	q.handlersMu.Lock()
	defer q.handlersMu.Unlock()
	q.errorHandlers = append(q.errorHandlers, h)
}

func (q *Queue) emitMessage(payload json.RawMessage, id, from string) {
	q.handlersMu.Lock()
	handlers := append([]MessageHandler(nil), q.messageHandlers...)
	q.handlersMu.Unlock()
	for _, h := range handlers {
		h(payload, id, from)
	}
}

func (q *Queue) emitError(err error, source string) {
	q.logger.Errorf("%s: %v", source, err)
	q.handlersMu.Lock()
	handlers := append([]ErrorHandler(nil), q.errorHandlers...)
	q.handlersMu.Unlock()
	for _, h := range handlers {
		h(err, source)
	}
}

// Start opens the reader and writer connections (idempotently), installs
// the once-per-process signal handlers, attempts watcher election, begins
// the read loop, and kicks a one-shot processDelayed to flush messages
// that came due before this process started (§4.G).
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.startLocked(ctx)
}

func (q *Queue) startLocked(ctx context.Context) error {
	if q.name == "" {
		return fmt.Errorf("imq: queue name must not be empty")
	}
	if q.initialized {
		return nil
	}

	var readerErr, writerErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if q.reader == nil {
			q.reader, readerErr = newReader(ctx, q.cfg, q.name, q.logger)
		}
	}()
	go func() {
		defer wg.Done()
		if q.writer == nil {
			q.writer, writerErr = acquireWriter(ctx, q.cfg, q.name, q.logger)
		}
	}()
	wg.Wait()
	if readerErr != nil {
		return readerErr
	}
	if writerErr != nil {
		return writerErr
	}

	if q.sendCh == nil {
		q.sendCh = make(chan *sendJob, sendQueueBufferSize)
		q.sendDone = make(chan struct{})
		go q.sendLoop(q.sendCh, q.sendDone)
	}

	installSignalHandlersOnce()
	registerForShutdown(q)

	if err := q.initWatcher(ctx); err != nil {
		q.emitError(err, SourceOnWatch)
	}

	q.healthchecker = newHealthChecker(healthcheckerParams{
		logger:   q.logger,
		client:   q.writer,
		interval: q.cfg.HealthCheckInterval,
		fn:       q.cfg.HealthCheckFunc,
	})
	if q.cfg.HealthCheckFunc != nil {
		q.healthchecker.start(&q.readWg)
	}

	if q.cfg.StatsInterval > 0 {
		q.janitor = newJanitor(janitorParams{
			logger:   q.logger,
			client:   q.writer,
			prefix:   q.cfg.Prefix,
			name:     q.name,
			interval: q.cfg.StatsInterval,
		})
		q.janitor.start(&q.readWg)
	}

	q.initialized = true
	q.readDone = make(chan struct{})
	q.readWg.Add(1)
	go q.readLoop(q.readDone)

	go func() {
		listKey := base.ListKey(q.cfg.Prefix, q.name)
		if err := q.processDelayed(context.Background(), listKey); err != nil {
			q.emitError(err, SourceOnProcessDelayed)
		}
	}()

	return nil
}

// Stop tears down the reader connection, halts the read loop, and stops the
// healthcheck and stats goroutines (Start restarts them). The writer and
// watcher remain alive for the rest of the process (§4.G).
func (q *Queue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopLocked()
}

func (q *Queue) stopLocked() error {
	if !q.initialized {
		return nil
	}
	if q.readDone != nil {
		close(q.readDone)
	}
	if q.reader != nil {
		q.reader.Close()
		q.reader = nil
	}
	if q.healthchecker != nil {
		q.healthchecker.shutdown()
		q.healthchecker = nil
	}
	if q.janitor != nil {
		q.janitor.shutdown()
		q.janitor = nil
	}
	q.initialized = false
	q.readWg.Wait()
	return nil
}

// Destroy releases every resource this queue holds: it cancels the safe
// sweeper if it owns the watcher, releases the watcher, stops the reader,
// closes this queue's ordered send dispatcher (draining any buffered
// sends first), clears its own keys, and finally releases this process's
// reference on the shared writer (§4.G).
func (q *Queue) Destroy(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return nil
	}

	if q.isOwner {
		q.releaseWatcherOwnership(ctx)
	}
	if q.watcherEntry != nil {
		releaseWatcherConn(q.cfg)
		q.watcherEntry = nil
	}

	if err := q.stopLocked(); err != nil {
		return err
	}

	if q.sendCh != nil {
		close(q.sendCh)
		<-q.sendDone
		q.sendCh = nil
		q.sendDone = nil
	}

	if err := q.clearLocked(ctx); err != nil {
		return err
	}

	releaseWriter(q.cfg)
	q.writer = nil
	q.destroyed = true
	unregisterForShutdown(q)
	return nil
}

// Clear deletes this queue's ready list and delayed set. Other queues
// sharing the same writer connection are unaffected.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clearLocked(ctx)
}

func (q *Queue) clearLocked(ctx context.Context) error {
	if q.writer == nil {
		return nil
	}
	listKey := base.ListKey(q.cfg.Prefix, q.name)
	delayedKey := base.DelayedKey(q.cfg.Prefix, q.name)
	return q.writer.Del(ctx, listKey, delayedKey).Err()
}

// Ping checks connectivity of the writer connection.
func (q *Queue) Ping(ctx context.Context) error {
	q.mu.Lock()
	writer := q.writer
	q.mu.Unlock()
	if writer == nil {
		return fmt.Errorf("imq: queue %q is not started", q.name)
	}
	return writer.Ping(ctx).Err()
}

// listKey returns this queue's ready-list key.
func (q *Queue) listKey() string {
	return base.ListKey(q.cfg.Prefix, q.name)
}
