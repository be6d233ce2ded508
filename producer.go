// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hemant/imq/internal/base"
	"github.com/hemant/imq/internal/profile"
	"github.com/redis/go-redis/v9"
)

// sendQueueBufferSize bounds how many pending sends a Queue will accept
// without blocking the caller before its dispatch goroutine catches up.
const sendQueueBufferSize = 256

// sendJob is one envelope queued for dispatch by a Queue's ordered sender.
type sendJob struct {
	toQueue string
	id      string
	data    []byte
	delay   time.Duration
	onError func(error)
}

// Send publishes message to toQueue and returns the generated envelope id
// synchronously, before the server has acknowledged the write (fire and
// forget). If delay is zero, the envelope becomes immediately visible on
// toQueue's ready list. If delay is positive, the envelope is scheduled for
// delivery no earlier than now+delay (§4.D).
//
// Two Send calls issued in program order against the same Queue are
// dispatched to Redis in that order (§5): each call enqueues its envelope
// onto this Queue's internal dispatch channel, and a single background
// goroutine (started by Start/ensureWriter) drains that channel and issues
// the underlying LPush/ZAdd calls strictly in submission order, regardless
// of per-call network timing.
//
// toQueue need not be a queue this process has started: keys are derived
// purely from (prefix, toQueue), so cross-process, cross-queue sends work
// without any coordination beyond a shared Redis server.
//
// onError, if non-nil, is invoked asynchronously if the underlying
// transport call fails; the id has already been generated and returned by
// the time that happens.
func (q *Queue) Send(toQueue string, message interface{}, delay time.Duration, onError func(error)) (string, error) {
	if err := q.ensureWriter(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return "", err
	}
	env := &base.Envelope{
		ID:      uuid.NewString(),
		From:    q.name,
		Message: payload,
	}
	data, err := q.codec.Pack(env)
	if err != nil {
		return "", err
	}

	q.mu.Lock()
	sendCh := q.sendCh
	q.mu.Unlock()

	sendCh <- &sendJob{toQueue: toQueue, id: env.ID, data: data, delay: delay, onError: onError}
	return env.ID, nil
}

// sendLoop is the single per-queue goroutine that owns all writes issued by
// Send, preserving submission order independent of the writer connection's
// pool concurrency. Exits once ch is closed and drained, by Destroy.
func (q *Queue) sendLoop(ch <-chan *sendJob, done chan struct{}) {
	defer close(done)
	for job := range ch {
		q.doSend(job.toQueue, job.id, job.data, job.delay, job.onError)
	}
}

func (q *Queue) doSend(toQueue, id string, data []byte, delay time.Duration, onError func(error)) {
	ctx := context.Background()
	listKey := base.ListKey(q.cfg.Prefix, toQueue)

	_, err := profile.Wrap(q.logger, "imq.Send", []interface{}{toQueue, id, delay}, func() (interface{}, error) {
		if delay <= 0 {
			return nil, q.writer.LPush(ctx, listKey, data).Err()
		}

		delayedKey := base.DelayedKey(q.cfg.Prefix, toQueue)
		ttlKey := base.TTLKey(q.cfg.Prefix, toQueue, id)
		score := float64(q.cfg.Clock.Now().Add(delay).UnixMilli())

		if err := q.writer.ZAdd(ctx, delayedKey, redis.Z{Score: score, Member: data}).Err(); err != nil {
			return nil, err
		}
		return nil, q.writer.SetNX(ctx, ttlKey, "", delay).Err()
	})
	if err != nil {
		q.reportSendErr(err, onError)
	}
}

func (q *Queue) reportSendErr(err error, onError func(error)) {
	q.logger.Errorf("send to %s failed: %v", q.name, err)
	if onError != nil {
		onError(err)
	}
}

func (q *Queue) ensureWriter() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.writer != nil {
		return nil
	}
	return q.startLocked(context.Background())
}
