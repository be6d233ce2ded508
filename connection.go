// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"os"
	"sync"

	"github.com/hemant/imq/internal/base"
	"github.com/hemant/imq/internal/errors"
	"github.com/hemant/imq/internal/log"
	"github.com/redis/go-redis/v9"
)

// channel identifies one leg of the connection triad described in the
// package overview: a blocking reader, a shared non-blocking writer, and a
// pubsub watcher.
type channel string

const (
	channelReader  channel = "reader"
	channelWriter  channel = "writer"
	channelWatcher channel = "watcher"
)

// sharedConn is a reference-counted redis client shared by every Queue in
// the process pointed at the same address. Used for the writer (always)
// and for the watcher's non-blocking command connection.
type sharedConn struct {
	mu     sync.Mutex
	client *redis.Client
	refs   int
}

var (
	writerRegistryMu sync.Mutex
	writerRegistry   = map[string]*sharedConn{}

	watcherRegistryMu sync.Mutex
	watcherRegistry   = map[string]*sharedConn{}
)

// acquireShared returns the shared client for addr from registry, creating
// and connecting it if this is the first acquisition, and bumping its
// reference count. The channel name is used only for the connection's
// CLIENT SETNAME and logging.
func acquireShared(ctx context.Context, registry map[string]*sharedConn, mu *sync.Mutex, cfg Config, ch channel, queueName string, logger *log.Logger) (*redis.Client, error) {
	mu.Lock()
	defer mu.Unlock()

	addr := cfg.addr()
	entry, ok := registry[addr]
	if ok {
		entry.refs++
		return entry.client, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := connect(ctx, client, cfg, ch, queueName, logger); err != nil {
		client.Close()
		return nil, err
	}
	registry[addr] = &sharedConn{client: client, refs: 1}
	return client, nil
}

// releaseShared decrements addr's reference count and closes + forgets the
// connection once the last holder has released it. Idempotent: releasing
// an address already absent from the registry is a no-op, tolerating
// concurrent destroy() of different queues against the same writer.
func releaseShared(registry map[string]*sharedConn, mu *sync.Mutex, addr string) {
	mu.Lock()
	defer mu.Unlock()

	entry, ok := registry[addr]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		entry.client.Close()
		delete(registry, addr)
	}
}

// acquireWriter returns the process-wide writer connection for cfg's
// address, creating it on first use. One logical connection per address is
// shared across every queue in the process.
func acquireWriter(ctx context.Context, cfg Config, queueName string, logger *log.Logger) (*redis.Client, error) {
	return acquireShared(ctx, writerRegistry, &writerRegistryMu, cfg, channelWriter, queueName, logger)
}

func releaseWriter(cfg Config) {
	releaseShared(writerRegistry, &writerRegistryMu, cfg.addr())
}

// acquireWatcherConn returns the process-wide watcher command connection
// (used for everything except the pubsub subscription itself) for cfg's
// address.
func acquireWatcherConn(ctx context.Context, cfg Config, queueName string, logger *log.Logger) (*redis.Client, error) {
	return acquireShared(ctx, watcherRegistry, &watcherRegistryMu, cfg, channelWatcher, queueName, logger)
}

func releaseWatcherConn(cfg Config) {
	releaseShared(watcherRegistry, &watcherRegistryMu, cfg.addr())
}

// newReader opens a dedicated, unshared connection for this queue
// instance's blocking pop loop. PoolSize 1 ensures the blocking call
// monopolizes the connection rather than starving a pool shared with other
// callers.
func newReader(ctx context.Context, cfg Config, queueName string, logger *log.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.addr(), PoolSize: 1})
	if err := connect(ctx, client, cfg, channelReader, queueName, logger); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// connect performs the idempotent "ready" handshake: pings the server and
// sets a human-readable client name so the watcher-count can be derived
// from CLIENT LIST. Transport errors are logged and returned; callers treat
// them as the "error" event of the connection triad (§4.A).
func connect(ctx context.Context, client *redis.Client, cfg Config, ch channel, queueName string, logger *log.Logger) error {
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Errorf("%s connection to %s failed: %v", ch, cfg.addr(), err)
		return errors.E(errors.Transport, err)
	}
	hostname, _ := os.Hostname()
	name := base.ClientName(cfg.Prefix, queueName, string(ch), os.Getpid(), hostname)
	if err := client.Do(ctx, "CLIENT", "SETNAME", name).Err(); err != nil {
		logger.Warnf("could not set client name on %s connection: %v", ch, err)
	}
	return nil
}
