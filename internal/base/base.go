// Copyright 2020 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package base defines foundational types and constants used in the imq
// package: the Redis key namespace, the wire envelope, and a minimal
// Broker interface.
package base

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hemant/imq/internal/errors"
)

// Version of the imq library.
const Version = "1.0.0"

// DefaultPrefix is the key namespace used if Config.Prefix is unset.
const DefaultPrefix = "imq"

// DefaultHost and DefaultPort are the Redis connection defaults.
const (
	DefaultHost = "localhost"
	DefaultPort = 6379
)

// LockKey returns the redis key used for watcher election under prefix.
func LockKey(prefix string) string {
	return prefix + ":watch:lock"
}

// ListKey returns the redis key for the ready list of the named queue.
func ListKey(prefix, name string) string {
	return prefix + ":" + name
}

// DelayedKey returns the redis key for the delayed sorted set of the
// named queue.
func DelayedKey(prefix, name string) string {
	return ListKey(prefix, name) + ":delayed"
}

// TTLKey returns the redis key for the expiry beacon of envelope id on the
// named queue.
func TTLKey(prefix, name, id string) string {
	return ListKey(prefix, name) + ":" + id + ":ttl"
}

// WorkerKeyPrefix returns the common prefix of every worker list for the
// named queue, usable as a SCAN match pattern when suffixed with "*".
func WorkerKeyPrefix(prefix, name string) string {
	return ListKey(prefix, name) + ":worker:"
}

// WorkerKey returns the redis key for the in-flight worker list for the
// given worker id and absolute expiry (ms since epoch).
func WorkerKey(prefix, name, workerID string, expireMs int64) string {
	return WorkerKeyPrefix(prefix, name) + workerID + ":" + strconv.FormatInt(expireMs, 10)
}

// WorkerScanPattern returns a SCAN match pattern over all worker keys for
// all queues under prefix.
func WorkerScanPattern(prefix string) string {
	return prefix + ":*:worker:*"
}

// ParseWorkerKey splits a worker key of shape
// "<prefix>:<name>:worker:<id>:<expireMs>" into its queue list key and
// absolute expiry. Returns ok=false if key does not match the expected
// shape.
func ParseWorkerKey(key string) (listKey string, expireMs int64, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) < 4 {
		return "", 0, false
	}
	if parts[len(parts)-3] != "worker" {
		return "", 0, false
	}
	ms, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	listKey = strings.Join(parts[:len(parts)-3], ":")
	return listKey, ms, true
}

// ClientNamePattern returns the glob pattern matching watcher clients for
// this prefix, as reported by the server's client list.
func ClientNamePattern(prefix string) string {
	return prefix + ":*:watcher:*"
}

// ClientName returns the human readable name set on a connection for the
// given channel ("reader", "writer", "watcher").
func ClientName(prefix, queueName, channel string, pid int, hostname string) string {
	return prefix + ":" + queueName + ":" + channel + ":pid:" + strconv.Itoa(pid) + ":host:" + hostname
}

// Envelope is the wire format exchanged between producers and consumers.
// Round-trip invariant: Decode(Encode(e)) == e, for any mode of the codec
// wrapping this representation.
type Envelope struct {
	ID      string          `json:"id"`
	From    string          `json:"from"`
	Message json.RawMessage `json:"message"`
}

// EncodeEnvelope marshals e to its canonical JSON representation.
func EncodeEnvelope(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, errors.E(errors.Internal, "cannot encode nil envelope")
	}
	return json.Marshal(e)
}

// DecodeEnvelope unmarshals data into an Envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.E(errors.Decode, err)
	}
	return &e, nil
}

// Broker is a minimal ping/close connection contract. No package in this
// module uses it; the imq package talks to *redis.Client directly.
type Broker interface {
	Ping(ctx context.Context) error
	Close() error
}
