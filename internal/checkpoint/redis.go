// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package checkpoint

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// redisCursorKey is the single key the cursor checkpoint is stored
// under. Unlike the teacher's per-rate-limit-key counter layout, a
// journal has exactly one cursor, so this backend needs only one key
// rather than the teacher's key-per-entity scheme.
const redisCursorKey = "journald_exporter:cursor"

// RedisStore persists the journal cursor in Redis as a single string
// value, using the same SET/GET idiom the teacher's persistence package
// applies per rate-limit key (persistence/redis.go), repurposed here for
// one global cursor row instead of a counter-plus-commit-marker pair:
// there is nothing to make idempotent since SaveCursor is naturally
// idempotent (the last write for a given cursor always wins).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials addr lazily (go-redis connects on first use) and
// returns a ready Store.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// saveTimeout bounds how long a single LoadCursor/SaveCursor call may
// block, so a degraded Redis instance cannot stall the journal
// ingestion loop's per-entry cursor save for more than two seconds.
const saveTimeout = 2 * time.Second

// LoadCursor fetches the last saved cursor. A missing key is reported as
// ok=false with no error, matching the journal loop's "no saved cursor"
// fresh-start path.
func (r *RedisStore) LoadCursor() (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	val, err := r.client.Get(ctx, redisCursorKey).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checkpoint: redis get cursor: %w", err)
	}
	return val, true, nil
}

// SaveCursor overwrites the checkpoint with cursor. SET has no
// idempotency concerns the way the teacher's counter commits do
// (repeated identical writes are indistinguishable from one write), so
// this skips the commit-marker/Lua-script machinery entirely.
func (r *RedisStore) SaveCursor(cursor string) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.client.Set(ctx, redisCursorKey, cursor, 0).Err(); err != nil {
		return fmt.Errorf("checkpoint: redis set cursor: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ Store = (*RedisStore)(nil)
