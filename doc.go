// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

/*
Package imq provides a distributed, Redis-backed message queue.

A Queue is a named channel: any process that opens a Queue with a given
name and points it at the same Redis server can send to and receive from
every other process doing the same. Delivery defaults to at-most-once
(one send, one read, no ack); opting into SafeDelivery upgrades that to
at-least-once by parking each message in a crash-survivable worker list
while it is being handled, and rescuing it if the consumer dies before
finishing.

# Quick start

	q, err := imq.New("orders", imq.Config{Host: "localhost", Port: 6379})
	if err != nil {
		log.Fatal(err)
	}
	q.OnMessage(func(payload json.RawMessage, id, from string) {
		log.Printf("received %s from %s: %s", id, from, payload)
	})
	if err := q.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer q.Destroy(context.Background())

	id, err := q.Send("orders", map[string]int{"order_id": 42}, 0, nil)

# Connection triad

Each Queue holds three Redis connections of differing lifetime and
sharing policy: a dedicated blocking reader, a writer shared by refcount
with every other queue in the process pointed at the same address, and a
watcher, also shared by refcount, of which at most one per address
across the whole process actually wins election and does work (script
loading, keyspace-notification subscription, the safe-delivery
sweeper). See connection.go and watcher.go.

# Delayed delivery

Sending with a positive delay parks the envelope in a per-queue sorted
set keyed by due time and arms a companion TTL beacon key for that same
duration. The elected watcher subscribes to Redis keyspace expiration
notifications; when a beacon expires, it atomically moves every envelope
whose due time has arrived from the sorted set onto the ready list via a
server-side Lua script. See scripts.go.

# Monitoring

An Inspector reports ready, delayed, and in-flight depth for a queue
without requiring that queue to be running in this process. A minimal
CLI and web dashboard are provided under cmd/.
*/
package imq
