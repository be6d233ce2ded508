// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/hemant/imq/internal/base"
	"github.com/redis/go-redis/v9"
)

// readLoop dispatches to the unsafe or safe strategy depending on
// Config.SafeDelivery (§4.E). It runs until done is closed, at which point
// Stop's teardown of the reader connection has already caused any
// in-flight blocking call to fail, a condition both loops treat as a clean
// exit.
func (q *Queue) readLoop(done <-chan struct{}) {
	defer q.readWg.Done()
	if q.cfg.SafeDelivery {
		q.readSafe(done)
	} else {
		q.readUnsafe(done)
	}
}

// readUnsafe implements the unsafe read loop of §4.E: blocking right-pop
// with no timeout, dispatch to process, exit cleanly when the reader
// connection has been torn down.
func (q *Queue) readUnsafe(done <-chan struct{}) {
	ctx := context.Background()
	listKey := q.listKey()
	for {
		select {
		case <-done:
			return
		default:
		}

		q.mu.Lock()
		reader := q.reader
		q.mu.Unlock()
		if reader == nil {
			return
		}

		res, err := reader.BRPop(ctx, 0, listKey).Result()
		if err != nil {
			if isClosedConnErr(err) {
				return
			}
			select {
			case <-done:
				return
			default:
			}
			q.emitError(err, SourceOnReadUnsafe)
			continue
		}
		// res is [key, value]
		if len(res) == 2 {
			q.process(res[0], res[1])
		}
	}
}

// readSafe implements the safe-delivery read loop of §4.E: move one
// envelope into a private, crash-survivable worker list, process it from
// there, then delete the worker list. A consumer that dies between the
// move and the delete leaves the envelope for the watcher's sweeper to
// rescue within SafeDeliveryTTL.
func (q *Queue) readSafe(done <-chan struct{}) {
	ctx := context.Background()
	listKey := q.listKey()
	for {
		select {
		case <-done:
			return
		default:
		}

		q.mu.Lock()
		reader, writer := q.reader, q.writer
		q.mu.Unlock()
		if reader == nil || writer == nil {
			return
		}

		expireMs := q.cfg.Clock.Now().Add(q.cfg.SafeDeliveryTTL).UnixMilli()
		workerKey := base.WorkerKey(q.cfg.Prefix, q.name, uuid.NewString(), expireMs)

		if err := reader.BRPopLPush(ctx, listKey, workerKey, 0).Err(); err != nil {
			if isClosedConnErr(err) {
				return
			}
			select {
			case <-done:
				return
			default:
			}
			q.emitError(err, SourceOnReadSafe)
			continue
		}

		data, err := writer.LIndex(ctx, workerKey, 0).Result()
		if err != nil && err != redis.Nil {
			q.emitError(err, SourceOnReadSafe)
			continue
		}
		if err == nil {
			q.process(listKey, data)
		}
		if err := writer.Del(ctx, workerKey).Err(); err != nil {
			q.emitError(err, SourceOnReadSafe)
		}
	}
}

// process validates that key is this queue's own ready-list key (dropping
// silently otherwise), unpacks the envelope, and emits message(payload,
// id, from). Decode failures are reported via OnMessage and dropped,
// never re-thrown (§4.E, §7 kind 3).
func (q *Queue) process(key, data string) {
	if key != q.listKey() {
		return
	}
	env, err := q.codec.Unpack([]byte(data))
	if err != nil {
		q.emitError(err, SourceOnMessage)
		return
	}
	q.emitMessage(env.Message, env.ID, env.From)
}

func isClosedConnErr(err error) bool {
	if err == nil {
		return false
	}
	switch err {
	case redis.ErrClosed, context.Canceled:
		return true
	}
	s := err.Error()
	for _, sub := range []string{"use of closed network connection", "client is closed", "connection reset by peer"} {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
