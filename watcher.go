// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hemant/imq/internal/base"
	"github.com/hemant/imq/internal/errors"
	"github.com/hemant/imq/internal/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const sweepScanPageSize = 1000

// watcherEntry is the process-wide, per-address watcher state shared by
// every Queue pointed at that address (§4.A: "the watcher is stored in a
// per-instance map keyed by host:port so multiple queues in the same
// process share one watcher per address").
type watcherEntry struct {
	mu  sync.Mutex
	cfg Config

	client  *redis.Client // shared non-blocking command connection
	scripts *scriptRegistry
	refs    int

	electionDone bool
	isOwner      bool
	ownerQueue   *Queue

	pubsubClient *redis.Client
	pubsub       *redis.PubSub
	subDone      chan struct{}

	sweepStop chan struct{}
	sweepDone chan struct{}

	logger *log.Logger
}

var (
	watcherEntriesMu sync.Mutex
	watcherEntries   = map[string]*watcherEntry{}
)

// initWatcher acquires (creating if necessary) the shared watcherEntry for
// q's address and, the first time any queue in this process does so for
// that address, runs the election state machine of §4.F.
func (q *Queue) initWatcher(ctx context.Context) error {
	watcherEntriesMu.Lock()
	addr := q.cfg.addr()
	entry, ok := watcherEntries[addr]
	if !ok {
		client, err := acquireWatcherConn(ctx, q.cfg, q.name, q.logger)
		if err != nil {
			watcherEntriesMu.Unlock()
			return err
		}
		entry = &watcherEntry{
			cfg:     q.cfg,
			client:  client,
			scripts: newScriptRegistry(),
			logger:  q.logger,
		}
		watcherEntries[addr] = entry
	} else {
		if _, err := acquireWatcherConn(ctx, q.cfg, q.name, q.logger); err != nil {
			watcherEntriesMu.Unlock()
			return err
		}
	}
	entry.refs++
	watcherEntriesMu.Unlock()

	q.watcherEntry = entry
	if err := entry.elect(ctx, q); err != nil {
		return err
	}

	entry.mu.Lock()
	q.isOwner = entry.isOwner && entry.ownerQueue == q
	entry.mu.Unlock()
	return nil
}

// elect runs the watcher-election state machine exactly once per address
// per process; subsequent callers observe the cached result.
func (e *watcherEntry) elect(ctx context.Context, candidate *Queue) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.electionDone {
		return nil
	}
	e.electionDone = true

	count, err := e.countWatcherClients(ctx)
	if err != nil {
		return errors.E(errors.Transport, err)
	}
	if count > 0 {
		return nil // someone else already owns the watcher for this address.
	}

	won, err := e.ownWatch(ctx)
	if err != nil {
		return err
	}
	if won {
		return e.becomeOwner(ctx, candidate)
	}

	// SETNX lost the race. Back off and see whether the winner actually
	// shows up as a watcher client; if not, assume a stale lock (§4.F,
	// §9 "election by client-name scan") and reclaim it once.
	time.Sleep(time.Duration(1+rand.Intn(50)) * time.Millisecond)
	count, err = e.countWatcherClients(ctx)
	if err != nil {
		return errors.E(errors.Transport, err)
	}
	if count > 0 {
		return nil
	}
	if err := e.client.Del(ctx, base.LockKey(e.cfg.Prefix)).Err(); err != nil {
		return errors.E(errors.Transport, err)
	}
	won, err = e.ownWatch(ctx)
	if err != nil {
		return err
	}
	if won {
		return e.becomeOwner(ctx, candidate)
	}
	return nil
}

// countWatcherClients counts connections whose CLIENT SETNAME matches
// "<prefix>:*:watcher:*".
func (e *watcherEntry) countWatcherClients(ctx context.Context) (int, error) {
	out, err := e.client.Do(ctx, "CLIENT", "LIST").Text()
	if err != nil {
		return 0, err
	}
	pattern := base.ClientNamePattern(e.cfg.Prefix)
	prefix, _, _ := strings.Cut(pattern, "*")
	count := 0
	for _, line := range strings.Split(out, "\n") {
		idx := strings.Index(line, "name=")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("name="):]
		name, _, _ := strings.Cut(rest, " ")
		if strings.HasPrefix(name, prefix) && strings.Contains(name, ":watcher:") {
			count++
		}
	}
	return count, nil
}

// ownWatch attempts to acquire the watcher election lock with SETNX.
func (e *watcherEntry) ownWatch(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, base.LockKey(e.cfg.Prefix), "", 0).Result()
	if err != nil {
		return false, errors.E(errors.Transport, err)
	}
	return ok, nil
}

// becomeOwner loads scripts, subscribes to keyspace-expiration events, and
// starts the safe-delivery sweeper if requested by the electing candidate.
func (e *watcherEntry) becomeOwner(ctx context.Context, owner *Queue) error {
	e.isOwner = true
	e.ownerQueue = owner

	if err := e.scripts.loadAll(ctx, e.client); err != nil {
		owner.emitError(err, SourceOnScriptLoad)
	}

	if err := e.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		owner.emitError(errors.E(errors.Config, err), SourceOnConfig)
	}

	pubsubClient := redis.NewClient(&redis.Options{Addr: e.cfg.addr()})
	pubsub := pubsubClient.PSubscribe(ctx, "__keyevent@0__:expired", e.cfg.Prefix+":delayed:*")
	e.pubsubClient = pubsubClient
	e.pubsub = pubsub
	e.subDone = make(chan struct{})
	go e.subscribeLoop()

	if owner.cfg.SafeDelivery {
		e.sweepStop = make(chan struct{})
		e.sweepDone = make(chan struct{})
		go e.sweepLoop(owner.cfg.SafeDeliveryTTL)
	}
	return nil
}

// subscribeLoop reads pmessages off the keyspace-expiration subscription
// and promotes delayed envelopes whose TTL beacon just expired (§4.F).
func (e *watcherEntry) subscribeLoop() {
	defer close(e.subDone)
	ch := e.pubsub.Channel()
	for msg := range ch {
		listKey, ok := listKeyFromExpiredKey(msg.Payload)
		if !ok {
			continue
		}
		if err := e.processDelayed(context.Background(), listKey); err != nil {
			e.ownerQueue.emitError(err, SourceOnProcessDelayed)
		}
	}
}

// listKeyFromExpiredKey recovers LIST(q) from an expired TTL beacon key of
// shape "<prefix>:<name>:<id>:ttl" (§4.F: "drop the last two segments").
func listKeyFromExpiredKey(expiredKey string) (string, bool) {
	parts := strings.Split(expiredKey, ":")
	if len(parts) < 3 || parts[len(parts)-1] != "ttl" {
		return "", false
	}
	return strings.Join(parts[:len(parts)-2], ":"), true
}

// processDelayed invokes moveDelayed for listKey's delayed ZSET, atomically
// appending any envelopes whose due time has arrived to the ready list.
func (e *watcherEntry) processDelayed(ctx context.Context, listKey string) error {
	delayedKey := listKey + ":delayed"
	_, err := e.scripts.evalMoveDelayed(ctx, e.client, delayedKey, listKey, e.cfg.Clock.Now().UnixMilli())
	return err
}

// processDelayed is the Queue-facing entry point used by Start's one-shot
// flush (§4.G step 7) and is safe to call whether or not this process owns
// the watcher for its address.
func (q *Queue) processDelayed(ctx context.Context, listKey string) error {
	q.mu.Lock()
	entry := q.watcherEntry
	q.mu.Unlock()
	if entry == nil {
		return nil
	}
	return entry.processDelayed(ctx, listKey)
}

// sweepLoop periodically rescues stalled safe-delivery worker lists back
// onto their parent queue (§4.F, §9 open question resolved: rescue items
// whose trailing expire-ms is at or before now, matching the stated intent
// of rescuing stalled work rather than the original's literal but likely
// inverted comparison).
func (e *watcherEntry) sweepLoop(interval time.Duration) {
	defer close(e.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	limiter := rate.NewLimiter(rate.Limit(20), 1) // cap SCAN page issuance, §5

	for {
		select {
		case <-e.sweepStop:
			return
		case <-ticker.C:
			if err := e.sweepOnce(context.Background(), limiter); err != nil {
				e.ownerQueue.emitError(err, SourceOnSafeDelivery)
				return
			}
		}
	}
}

func (e *watcherEntry) sweepOnce(ctx context.Context, limiter *rate.Limiter) error {
	now := e.cfg.Clock.Now().UnixMilli()
	pattern := base.WorkerScanPattern(e.cfg.Prefix)
	var cursor uint64
	for {
		if err := limiter.Wait(ctx); err != nil {
			return errors.E(errors.Internal, err)
		}
		keys, next, err := e.client.Scan(ctx, cursor, pattern, sweepScanPageSize).Result()
		if err != nil {
			return errors.E(errors.Internal, err)
		}
		for _, key := range keys {
			listKey, expireMs, ok := base.ParseWorkerKey(key)
			if !ok {
				continue
			}
			if expireMs <= now {
				if err := e.client.RPopLPush(ctx, key, listKey).Err(); err != nil && err != redis.Nil {
					return errors.E(errors.Internal, err)
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// releaseWatcherOwnership deletes the election lock if q owns it; called
// from Destroy and from the signal handler.
func (q *Queue) releaseWatcherOwnership(ctx context.Context) {
	entry := q.watcherEntry
	if entry == nil {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.isOwner || entry.ownerQueue != q {
		return
	}
	if entry.sweepStop != nil {
		close(entry.sweepStop)
		entry.sweepStop = nil
	}
	if entry.pubsub != nil {
		entry.pubsub.Close()
		entry.pubsubClient.Close()
		entry.pubsub = nil
	}
	if err := entry.client.Del(ctx, base.LockKey(entry.cfg.Prefix)).Err(); err != nil {
		q.logger.Errorf("failed to release watcher lock: %v", err)
	}
	entry.isOwner = false
	entry.ownerQueue = nil
}
