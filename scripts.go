// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/hemant/imq/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

// moveDelayedScript implements the atomic move described in §4.C: given
// the delayed ZSET and the ready LIST, left-push every member whose score
// (due time, ms) is at most ARGV[1] onto the list, in iteration order,
// remove the scored range, and return the count moved.
//
// KEYS[1] -> delayed ZSET
// KEYS[2] -> ready LIST
// ARGV[1] -> now, in milliseconds
const moveDelayedScript = `
local ready = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, member in ipairs(ready) do
	redis.call("LPUSH", KEYS[2], member)
end
if #ready > 0 then
	redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
end
return #ready
`

const scriptNameMoveDelayed = "moveDelayed"

// scriptRegistry caches named server-side scripts by content hash,
// following the explicit load protocol of §4.C: compute SHA1, check
// presence with SCRIPT EXISTS, upload with SCRIPT LOAD if absent, then
// invoke by hash with EVALSHA.
type scriptRegistry struct {
	mu     sync.RWMutex
	code   map[string]string // name -> source
	hashes map[string]string // name -> sha1 hash, once known loaded
}

func newScriptRegistry() *scriptRegistry {
	return &scriptRegistry{
		code: map[string]string{
			scriptNameMoveDelayed: moveDelayedScript,
		},
		hashes: make(map[string]string),
	}
}

// loadAll uploads every registered script to client, recording its hash.
// Called once by the watcher owner on election (§4.F).
func (r *scriptRegistry) loadAll(ctx context.Context, client *redis.Client) error {
	for name, code := range r.code {
		if _, err := r.load(ctx, client, name, code); err != nil {
			return err
		}
	}
	return nil
}

func (r *scriptRegistry) load(ctx context.Context, client *redis.Client, name, code string) (string, error) {
	sum := sha1.Sum([]byte(code))
	hash := hex.EncodeToString(sum[:])

	exists, err := client.ScriptExists(ctx, hash).Result()
	if err != nil {
		return "", errors.E(errors.ScriptLoad, err)
	}
	if len(exists) == 0 || !exists[0] {
		if _, err := client.ScriptLoad(ctx, code).Result(); err != nil {
			return "", errors.E(errors.ScriptLoad, err)
		}
	}

	r.mu.Lock()
	r.hashes[name] = hash
	r.mu.Unlock()
	return hash, nil
}

// hashOf returns the known hash for name, or ok=false if the registry has
// not yet loaded it (e.g. script-load failed earlier, per §7 kind 4).
func (r *scriptRegistry) hashOf(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hashes[name]
	return h, ok
}

// evalMoveDelayed invokes moveDelayed by hash and returns the count of
// envelopes moved from the delayed ZSET to the ready LIST.
func (r *scriptRegistry) evalMoveDelayed(ctx context.Context, client *redis.Client, delayedKey, listKey string, nowMs int64) (int64, error) {
	hash, ok := r.hashOf(scriptNameMoveDelayed)
	if !ok {
		// Not yet known to be loaded on the server: no-op until a
		// subsequent loadAll succeeds, per §7 kind 4.
		return 0, nil
	}
	res, err := client.EvalSha(ctx, hash, []string{delayedKey, listKey}, nowMs).Result()
	if err != nil {
		if isNoScriptErr(err) {
			// Server restarted or flushed its script cache; reload and retry once.
			if _, lerr := r.load(ctx, client, scriptNameMoveDelayed, moveDelayedScript); lerr != nil {
				return 0, lerr
			}
			hash, _ = r.hashOf(scriptNameMoveDelayed)
			res, err = client.EvalSha(ctx, hash, []string{delayedKey, listKey}, nowMs).Result()
		}
		if err != nil {
			return 0, errors.E(errors.Internal, err)
		}
	}
	n, err := cast.ToInt64E(res)
	if err != nil {
		return 0, errors.E(errors.Internal, err)
	}
	return n, nil
}

func isNoScriptErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return len(s) >= 8 && s[:8] == "NOSCRIPT"
}
