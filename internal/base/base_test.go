package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "imq:orders", ListKey("imq", "orders"))
	assert.Equal(t, "imq:orders:delayed", DelayedKey("imq", "orders"))
	assert.Equal(t, "imq:orders:abc:ttl", TTLKey("imq", "orders", "abc"))
	assert.Equal(t, "imq:orders:worker:", WorkerKeyPrefix("imq", "orders"))
	assert.Equal(t, "imq:watch:lock", LockKey("imq"))
}

func TestWorkerKeyRoundTrip(t *testing.T) {
	key := WorkerKey("imq", "orders", "worker-123", 1700000000000)

	listKey, expireMs, ok := ParseWorkerKey(key)
	require.True(t, ok)
	assert.Equal(t, ListKey("imq", "orders"), listKey)
	assert.Equal(t, int64(1700000000000), expireMs)
}

func TestParseWorkerKeyRejectsMalformed(t *testing.T) {
	cases := []string{
		"imq:orders",
		"imq:orders:worker",
		"not-a-worker-key:at:all",
		"imq:orders:worker:id:not-a-number",
	}
	for _, c := range cases {
		_, _, ok := ParseWorkerKey(c)
		assert.False(t, ok, "expected %q to be rejected", c)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	e := &Envelope{ID: "id-1", From: "a", Message: []byte(`{"k":"v"}`)}
	data, err := EncodeEnvelope(e)
	require.NoError(t, err)

	got, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.From, got.From)
	assert.JSONEq(t, string(e.Message), string(got.Message))
}

func TestClientNamePattern(t *testing.T) {
	name := ClientName("imq", "orders", "watcher", 42, "host-a")
	assert.Contains(t, name, "imq:orders:watcher:")
	assert.Contains(t, name, "pid:42")
	assert.Contains(t, name, "host:host-a")
}
