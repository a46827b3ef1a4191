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
	"sync"
	"testing"
)

func u32(v uint32) *uint32 { return &v }
func str(v string) *string { return &v }

func TestByteCountMap_PushLineAccumulates(t *testing.T) {
	m := NewByteCountMap()
	key := MessageKey{Priority: Informational, UID: u32(123), GID: u32(123), Service: str("foo")}
	m.PushLine(key, 5)
	m.PushLine(key, 7)

	snap := m.Snapshot()
	entries := snap.PriorityTable[Informational]
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Lines != 2 || entries[0].Bytes != 12 {
		t.Fatalf("got lines=%d bytes=%d want lines=2 bytes=12", entries[0].Lines, entries[0].Bytes)
	}
}

func TestByteCountMap_PartitionsByPriority(t *testing.T) {
	m := NewByteCountMap()
	m.PushLine(MessageKey{Priority: Emergency}, 1)
	m.PushLine(MessageKey{Priority: Debug}, 1)

	snap := m.Snapshot()
	if len(snap.PriorityTable[Emergency]) != 1 {
		t.Fatalf("expected emergency bucket populated")
	}
	if len(snap.PriorityTable[Debug]) != 1 {
		t.Fatalf("expected debug bucket populated")
	}
	for p := Alert; p < Debug; p++ {
		if len(snap.PriorityTable[p]) != 0 {
			t.Fatalf("priority %v unexpectedly populated", p)
		}
	}
}

func TestByteCountMap_SnapshotSortedWithinShard(t *testing.T) {
	m := NewByteCountMap()
	m.PushLine(MessageKey{Priority: Debug, Service: str("zeta")}, 1)
	m.PushLine(MessageKey{Priority: Debug, Service: str("alpha")}, 1)
	m.PushLine(MessageKey{Priority: Debug}, 1) // absent service sorts first

	snap := m.Snapshot()
	bucket := snap.PriorityTable[Debug]
	if len(bucket) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(bucket))
	}
	if bucket[0].Key.Service != nil {
		t.Fatalf("expected absent service to sort first")
	}
	if *bucket[1].Key.Service != "alpha" || *bucket[2].Key.Service != "zeta" {
		t.Fatalf("unexpected order: %+v", bucket)
	}
}

func TestByteCountMap_ConcurrentInsertAndIncrement(t *testing.T) {
	m := NewByteCountMap()
	key := MessageKey{Priority: Warning, Service: str("concurrent")}

	var wg sync.WaitGroup
	const goroutines = 64
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.PushLine(key, 2)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	bucket := snap.PriorityTable[Warning]
	if len(bucket) != 1 {
		t.Fatalf("expected exactly one entry despite concurrent first-insert race, got %d", len(bucket))
	}
	if bucket[0].Lines != goroutines || bucket[0].Bytes != goroutines*2 {
		t.Fatalf("got lines=%d bytes=%d", bucket[0].Lines, bucket[0].Bytes)
	}
}

func TestByteCountSnapshot_IsEmpty(t *testing.T) {
	m := NewByteCountMap()
	if !m.Snapshot().IsEmpty() {
		t.Fatalf("expected fresh map to be empty")
	}
	m.PushLine(MessageKey{}, 1)
	if m.Snapshot().IsEmpty() {
		t.Fatalf("expected populated map to report non-empty")
	}
}

func TestMessageKey_Less_AbsentSortsBeforePresent(t *testing.T) {
	absent := MessageKey{Priority: Debug}
	present := MessageKey{Priority: Debug, UID: u32(0)}
	if !absent.Less(present) {
		t.Fatalf("expected absent UID to sort before present UID, even uid=0")
	}
	if present.Less(absent) {
		t.Fatalf("ordering must not be symmetric here")
	}
}
