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

package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// tableEntry holds the two counters tracked per MessageKey. Fields are
// atomic so a read-lock holder can bump an existing entry without ever
// taking the shard's write lock.
type tableEntry struct {
	lines atomic.Uint64
	bytes atomic.Uint64
}

// ByteCountEntry is a point-in-time copy of one keyed counter pair.
type ByteCountEntry struct {
	Key   MessageKey
	Lines uint64
	Bytes uint64
}

// ByteCountSnapshot is the by-value, reference-free copy of the whole
// table, partitioned by priority exactly as the live table is.
type ByteCountSnapshot struct {
	PriorityTable [NumPriorities][]ByteCountEntry
}

// IsEmpty reports whether every priority bucket is empty.
func (s ByteCountSnapshot) IsEmpty() bool {
	for _, bucket := range s.PriorityTable {
		if len(bucket) > 0 {
			return false
		}
	}
	return true
}

// EachWhile iterates every entry in priority order (Emergency first),
// then by the entry's own sort order within a priority, calling receiver
// for each until it returns false.
func (s ByteCountSnapshot) EachWhile(receiver func(ByteCountEntry) bool) {
	for _, bucket := range s.PriorityTable {
		for _, e := range bucket {
			if !receiver(e) {
				return
			}
		}
	}
}

// shard is one priority's independently-locked sub-map. Partitioning by
// priority (rather than one lock over the whole table) means a burst of
// Emergency-priority entries never contends with Debug-priority
// ingestion, matching spec §4.C/§5's explicit target design.
type shard struct {
	mu sync.RWMutex
	m  map[compositeKey]*tableEntry
}

// ByteCountMap is the concurrent per-key counter table: eight
// independently-locked shards, one per Priority.
type ByteCountMap struct {
	shards [NumPriorities]shard
}

// NewByteCountMap returns an empty map ready for concurrent use.
func NewByteCountMap() *ByteCountMap {
	m := &ByteCountMap{}
	for i := range m.shards {
		m.shards[i].m = make(map[compositeKey]*tableEntry)
	}
	return m
}

// PushLine records one ingested message line of msgLen bytes under key.
// Insertion is two-phase (spec §4.C):
//
//  1. Take the shard's read lock, look the key up; if present, bump its
//     atomic counters and return. This is the hot path: one read lock
//     plus two atomic adds, no allocation.
//  2. On a miss, drop the read lock, take the write lock, and re-probe
//     (another goroutine may have inserted the same key in the
//     meantime) before allocating and inserting a fresh entry.
func (m *ByteCountMap) PushLine(key MessageKey, msgLen int) {
	s := &m.shards[key.Priority]
	ck := toCompositeKey(key)

	s.mu.RLock()
	if e, ok := s.m[ck]; ok {
		e.lines.Add(1)
		e.bytes.Add(uint64(msgLen))
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.m[ck]; ok {
		e.lines.Add(1)
		e.bytes.Add(uint64(msgLen))
		return
	}
	e := &tableEntry{}
	e.lines.Store(1)
	e.bytes.Store(uint64(msgLen))
	s.m[ck] = e
}

// Snapshot copies every shard's entries under that shard's read lock,
// sorted within the shard for deterministic output, and returns a
// by-value structure with no references into the live table.
func (m *ByteCountMap) Snapshot() ByteCountSnapshot {
	var snap ByteCountSnapshot
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		bucket := make([]ByteCountEntry, 0, len(s.m))
		for ck, e := range s.m {
			bucket = append(bucket, ByteCountEntry{
				Key:   ck.toMessageKey(Priority(i)),
				Lines: e.lines.Load(),
				Bytes: e.bytes.Load(),
			})
		}
		s.mu.RUnlock()
		sort.Slice(bucket, func(a, b int) bool { return bucket[a].Key.Less(bucket[b].Key) })
		snap.PriorityTable[i] = bucket
	}
	return snap
}
