// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"os"
	"sync"
)

var (
	signalOnce     sync.Once
	activeQueuesMu sync.Mutex
	activeQueues   = map[*Queue]struct{}{}
)

// registerForShutdown adds q to the set of queues consulted by the
// process-wide signal handler installed once per process (§4.G step 4).
func registerForShutdown(q *Queue) {
	activeQueuesMu.Lock()
	activeQueues[q] = struct{}{}
	activeQueuesMu.Unlock()
}

func unregisterForShutdown(q *Queue) {
	activeQueuesMu.Lock()
	delete(activeQueues, q)
	activeQueuesMu.Unlock()
}

// installSignalHandlersOnce installs the process-wide SIGINT/SIGTERM
// handler exactly once, regardless of how many queues call Start.
func installSignalHandlersOnce() {
	signalOnce.Do(func() {
		go waitForSignals()
	})
}

// releaseOwnedWatchersAndExit releases the watcher lock for every queue in
// this process that currently owns it, then exits with code 0 (§4.G step
// 4, §8 scenario 6).
func releaseOwnedWatchersAndExit() {
	activeQueuesMu.Lock()
	queues := make([]*Queue, 0, len(activeQueues))
	for q := range activeQueues {
		queues = append(queues, q)
	}
	activeQueuesMu.Unlock()

	ctx := context.Background()
	for _, q := range queues {
		if q.isOwner {
			q.releaseWatcherOwnership(ctx)
		}
	}
	os.Exit(0)
}
