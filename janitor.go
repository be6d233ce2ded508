// Copyright 2022 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"sync"
	"time"

	"github.com/hemant/imq/internal/base"
	"github.com/hemant/imq/internal/log"
	"github.com/redis/go-redis/v9"
)

// janitor periodically logs the depth of a queue's ready list and delayed
// set. It mutates nothing; it exists purely to give an operator a heartbeat
// of queue depth without having to reach for redis-cli.
type janitor struct {
	logger *log.Logger
	client *redis.Client

	prefix string
	name   string

	done     chan struct{}
	interval time.Duration
}

type janitorParams struct {
	logger   *log.Logger
	client   *redis.Client
	prefix   string
	name     string
	interval time.Duration
}

func newJanitor(params janitorParams) *janitor {
	return &janitor{
		logger:   params.logger,
		client:   params.client,
		prefix:   params.prefix,
		name:     params.name,
		done:     make(chan struct{}),
		interval: params.interval,
	}
}

func (j *janitor) shutdown() {
	close(j.done)
}

func (j *janitor) start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-j.done:
				return
			case <-ticker.C:
				j.exec()
			}
		}
	}()
}

func (j *janitor) exec() {
	ctx := context.Background()
	listKey := base.ListKey(j.prefix, j.name)
	delayedKey := base.DelayedKey(j.prefix, j.name)

	ready, err := j.client.LLen(ctx, listKey).Result()
	if err != nil {
		j.logger.Errorf("janitor: LLEN %s: %v", listKey, err)
		return
	}
	delayed, err := j.client.ZCard(ctx, delayedKey).Result()
	if err != nil {
		j.logger.Errorf("janitor: ZCARD %s: %v", delayedKey, err)
		return
	}
	j.logger.Debugf("queue %q: ready=%d delayed=%d", j.name, ready, delayed)
}
