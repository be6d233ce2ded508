package imq

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hemant/imq/internal/base"
	"github.com/hemant/imq/internal/timeutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedMessage struct {
	payload json.RawMessage
	id      string
	from    string
}

func newTestConfig(t *testing.T, srv *miniredis.Miniredis) Config {
	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Config{Host: host, Port: port}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestImmediateEcho(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := newTestConfig(t, srv)
	ctx := context.Background()

	consumer, err := New("echo", cfg)
	require.NoError(t, err)
	defer consumer.Destroy(ctx)

	received := make(chan receivedMessage, 1)
	consumer.OnMessage(func(payload json.RawMessage, id, from string) {
		received <- receivedMessage{payload: payload, id: id, from: from}
	})
	require.NoError(t, consumer.Start(ctx))

	producer, err := New("producer-a", cfg)
	require.NoError(t, err)
	defer producer.Destroy(ctx)

	id, err := producer.Send("echo", map[string]int{"a": 1}, 0, nil)
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, id, msg.id)
		assert.Equal(t, "producer-a", msg.from)
		assert.JSONEq(t, `{"a":1}`, string(msg.payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

// TestFIFOSingleProducer sends a long run of messages back to back, with no
// sleep between calls, and asserts they are delivered in exact submission
// order (§5, §8 "FIFO single-producer"). Without the per-queue ordered send
// dispatcher, each Send dispatches its LPush from its own goroutine onto a
// pooled connection with no inter-call synchronization, so this would flap
// out of order under concurrent scheduling.
func TestFIFOSingleProducer(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := newTestConfig(t, srv)
	ctx := context.Background()

	const n = 50

	consumer, err := New("fifo", cfg)
	require.NoError(t, err)
	defer consumer.Destroy(ctx)

	var order []string
	received := make(chan struct{}, n)
	consumer.OnMessage(func(payload json.RawMessage, id, from string) {
		order = append(order, string(payload))
		received <- struct{}{}
	})
	require.NoError(t, consumer.Start(ctx))

	producer, err := New("producer-b", cfg)
	require.NoError(t, err)
	defer producer.Destroy(ctx)

	for i := 0; i < n; i++ {
		_, err = producer.Send("fifo", i, 0, nil)
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}

	require.Len(t, order, n)
	for i := 0; i < n; i++ {
		assert.JSONEq(t, strconv.Itoa(i), order[i])
	}
}

func TestGzipInterop(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := newTestConfig(t, srv)
	cfg.UseGzip = true
	ctx := context.Background()

	consumer, err := New("gzip-q", cfg)
	require.NoError(t, err)
	defer consumer.Destroy(ctx)

	received := make(chan receivedMessage, 1)
	consumer.OnMessage(func(payload json.RawMessage, id, from string) {
		received <- receivedMessage{payload: payload, id: id, from: from}
	})
	require.NoError(t, consumer.Start(ctx))

	producer, err := New("producer-c", cfg)
	require.NoError(t, err)
	defer producer.Destroy(ctx)

	_, err = producer.Send("gzip-q", map[string]string{"hello": "world"}, 0, nil)
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.JSONEq(t, `{"hello":"world"}`, string(msg.payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestGzipModeMismatchProducesDecodeError(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := newTestConfig(t, srv)
	ctx := context.Background()

	plainCfg := cfg
	plainCfg.UseGzip = false
	gzipCfg := cfg
	gzipCfg.UseGzip = true

	consumer, err := New("mismatch-q", plainCfg)
	require.NoError(t, err)
	defer consumer.Destroy(ctx)

	errs := make(chan error, 1)
	consumer.OnError(func(err error, source string) {
		if source == SourceOnMessage {
			errs <- err
		}
	})
	require.NoError(t, consumer.Start(ctx))

	producer, err := New("producer-d", gzipCfg)
	require.NoError(t, err)
	defer producer.Destroy(ctx)

	_, err = producer.Send("mismatch-q", map[string]int{"x": 1}, 0, nil)
	require.NoError(t, err)

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decode error")
	}
}

func TestStartIdempotence(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := newTestConfig(t, srv)
	ctx := context.Background()

	q, err := New("idempotent", cfg)
	require.NoError(t, err)
	defer q.Destroy(ctx)

	require.NoError(t, q.Start(ctx))
	reader1, writer1 := q.reader, q.writer

	require.NoError(t, q.Start(ctx))
	assert.Same(t, reader1, q.reader)
	assert.Same(t, writer1, q.writer)
}

func TestClearScope(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := newTestConfig(t, srv)
	ctx := context.Background()

	a, err := New("clear-a", cfg)
	require.NoError(t, err)
	defer a.Destroy(ctx)
	b, err := New("clear-b", cfg)
	require.NoError(t, err)
	defer b.Destroy(ctx)

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	// A started queue pops its own ready list; stop the readers so the
	// envelopes sent below stay put. The writers remain open for Send and
	// Clear.
	require.NoError(t, a.Stop())
	require.NoError(t, b.Stop())

	_, err = a.Send("clear-a", "m", 0, nil)
	require.NoError(t, err)
	_, err = b.Send("clear-b", "m", 0, nil)
	require.NoError(t, err)

	require.True(t, waitFor(t, time.Second, func() bool {
		return srv.Exists(a.listKey()) && srv.Exists(b.listKey())
	}))

	require.NoError(t, a.Clear(ctx))

	assert.False(t, srv.Exists(a.listKey()))
	assert.True(t, srv.Exists(b.listKey()))
}

// TestDelayedVisibilityWithSimulatedClock exercises Config.Clock end to end:
// a delayed Send scores its envelope against the injected clock, a sweep
// before the due time must not promote it, and advancing the clock past the
// delay must make exactly one sweep promote and deliver it (§4.D, §8
// "delayed visibility").
func TestDelayedVisibilityWithSimulatedClock(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := newTestConfig(t, srv)
	clock := timeutil.NewSimulatedClock(time.Now())
	cfg.Clock = clock
	ctx := context.Background()

	consumer, err := New("delayed", cfg)
	require.NoError(t, err)
	defer consumer.Destroy(ctx)

	received := make(chan receivedMessage, 1)
	consumer.OnMessage(func(payload json.RawMessage, id, from string) {
		received <- receivedMessage{payload: payload, id: id, from: from}
	})
	require.NoError(t, consumer.Start(ctx))

	// Drive the delayed-promotion machinery through a script registry
	// loaded directly against this address, independent of whether this
	// process actually won watcher election here (a CLIENT LIST parsing
	// detail miniredis need not reproduce identically to real Redis).
	assertClient := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer assertClient.Close()
	registry := newScriptRegistry()
	require.NoError(t, registry.loadAll(ctx, assertClient))
	consumer.watcherEntry = &watcherEntry{cfg: consumer.cfg, client: assertClient, scripts: registry, logger: consumer.logger}

	producer, err := New("producer-e", cfg)
	require.NoError(t, err)
	defer producer.Destroy(ctx)

	_, err = producer.Send("delayed", "later", 10*time.Minute, nil)
	require.NoError(t, err)

	delayedKey := base.DelayedKey(cfg.withDefaults().Prefix, "delayed")
	require.True(t, waitFor(t, time.Second, func() bool {
		n, _ := assertClient.ZCard(ctx, delayedKey).Result()
		return n == 1
	}))

	require.NoError(t, consumer.processDelayed(ctx, consumer.listKey()))
	select {
	case <-received:
		t.Fatal("message delivered before its delay elapsed")
	case <-time.After(100 * time.Millisecond):
	}

	clock.AdvanceTime(10*time.Minute + time.Second)
	require.NoError(t, consumer.processDelayed(ctx, consumer.listKey()))

	select {
	case msg := <-received:
		assert.JSONEq(t, `"later"`, string(msg.payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delayed message")
	}
}
