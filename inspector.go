// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"fmt"
	"sort"

	"github.com/hemant/imq/internal/base"
	"github.com/redis/go-redis/v9"
)

// Inspector provides read-only visibility into queue state without
// requiring the caller to run a Queue for that name. It is safe to use
// concurrently with Queues actively sending and receiving, and across
// processes: it only reads, never claims the watcher role.
type Inspector struct {
	client redis.UniversalClient
	prefix string
}

// NewInspector returns an Inspector that reads keys under prefix (default
// DefaultPrefix when empty) using client.
func NewInspector(client redis.UniversalClient, prefix string) *Inspector {
	if prefix == "" {
		prefix = base.DefaultPrefix
	}
	return &Inspector{client: client, prefix: prefix}
}

// QueueInfo summarizes the depth of one named queue.
type QueueInfo struct {
	Name        string
	Ready       int64
	Delayed     int64
	InFlight    int64
	WatcherHeld bool
}

// GetQueue reports depth for a single queue name.
func (i *Inspector) GetQueue(ctx context.Context, name string) (QueueInfo, error) {
	listKey := base.ListKey(i.prefix, name)
	delayedKey := base.DelayedKey(i.prefix, name)

	ready, err := i.client.LLen(ctx, listKey).Result()
	if err != nil {
		return QueueInfo{}, fmt.Errorf("imq: LLEN %s: %w", listKey, err)
	}
	delayed, err := i.client.ZCard(ctx, delayedKey).Result()
	if err != nil {
		return QueueInfo{}, fmt.Errorf("imq: ZCARD %s: %w", delayedKey, err)
	}

	inFlight, err := i.countWorkerLists(ctx, name)
	if err != nil {
		return QueueInfo{}, err
	}

	held, err := i.client.Exists(ctx, base.LockKey(i.prefix)).Result()
	if err != nil {
		return QueueInfo{}, fmt.Errorf("imq: EXISTS %s: %w", base.LockKey(i.prefix), err)
	}

	return QueueInfo{
		Name:        name,
		Ready:       ready,
		Delayed:     delayed,
		InFlight:    inFlight,
		WatcherHeld: held > 0,
	}, nil
}

// countWorkerLists scans for safe-delivery worker keys belonging to name
// and returns how many are currently outstanding.
func (i *Inspector) countWorkerLists(ctx context.Context, name string) (int64, error) {
	pattern := base.WorkerKeyPrefix(i.prefix, name) + "*"
	var count int64
	var cursor uint64
	for {
		keys, next, err := i.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("imq: SCAN %s: %w", pattern, err)
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// GetQueues reports depth for every name in names, sorted by name.
func (i *Inspector) GetQueues(ctx context.Context, names []string) ([]QueueInfo, error) {
	infos := make([]QueueInfo, 0, len(names))
	for _, name := range names {
		info, err := i.GetQueue(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(a, b int) bool { return infos[a].Name < infos[b].Name })
	return infos, nil
}

// Peek returns up to limit raw envelope bytes currently sitting on name's
// ready list without removing them.
func (i *Inspector) Peek(ctx context.Context, name string, limit int64) ([]string, error) {
	listKey := base.ListKey(i.prefix, name)
	return i.client.LRange(ctx, listKey, 0, limit-1).Result()
}
