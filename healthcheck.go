// Copyright 2020 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"sync"
	"time"

	"github.com/hemant/imq/internal/log"
	"github.com/redis/go-redis/v9"
)

// healthchecker periodically pings the writer connection and reports the
// result to a user-provided callback.
type healthchecker struct {
	logger *log.Logger
	client *redis.Client

	done     chan struct{}
	interval time.Duration
	fn       func(error)
}

type healthcheckerParams struct {
	logger   *log.Logger
	client   *redis.Client
	interval time.Duration
	fn       func(error)
}

func newHealthChecker(params healthcheckerParams) *healthchecker {
	return &healthchecker{
		logger:   params.logger,
		client:   params.client,
		done:     make(chan struct{}),
		interval: params.interval,
		fn:       params.fn,
	}
}

func (hc *healthchecker) shutdown() {
	close(hc.done)
}

func (hc *healthchecker) start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()
		for {
			select {
			case <-hc.done:
				return
			case <-ticker.C:
				hc.exec()
			}
		}
	}()
}

func (hc *healthchecker) exec() {
	err := hc.client.Ping(context.Background()).Err()
	if hc.fn != nil {
		hc.fn(err)
	}
}
