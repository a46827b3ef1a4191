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

import "sync/atomic"

// PromState is the process-wide counter state: eight global monotonic
// counters plus the per-key ByteCountMap. It is mutated concurrently by
// the journal ingestion loop (the sole writer of most fields) and read
// by the IPC handler via Snapshot. Every counter uses relaxed-ordering
// atomics; a snapshot taken mid-ingestion may be slightly stale but each
// individual counter is monotonic (spec §5).
type PromState struct {
	entriesIngested     atomic.Uint64
	fieldsIngested      atomic.Uint64
	dataBytesIngested   atomic.Uint64
	faults              atomic.Uint64
	cursorDoubleRetries atomic.Uint64
	unreadableFields    atomic.Uint64
	corruptedFields     atomic.Uint64
	metricsRequests     atomic.Uint64

	MessagesIngested *ByteCountMap
}

// NewPromState returns a freshly zeroed state.
func NewPromState() *PromState {
	return &PromState{MessagesIngested: NewByteCountMap()}
}

// AddEntryIngested bumps the count of journal entries processed.
func (s *PromState) AddEntryIngested() {
	s.entriesIngested.Add(1)
}

// AddFieldIngested bumps both the field counter and the running total of
// field bytes ingested, since the two always move together (one field
// read == that field's byte length added to the data-bytes total).
func (s *PromState) AddFieldIngested(n uint64) {
	s.fieldsIngested.Add(1)
	s.dataBytesIngested.Add(n)
}

// AddFault records a recoverable journal I/O fault. Cold path.
func (s *PromState) AddFault() {
	s.faults.Add(1)
}

// AddCursorDoubleRetry records a retry that landed on an unchanged
// cursor. Cold path.
func (s *PromState) AddCursorDoubleRetry() {
	s.cursorDoubleRetries.Add(1)
}

// AddUnreadableField records a field that was present but truncated
// (E2BIG/ENOBUFS) or otherwise unreadable. Cold path.
func (s *PromState) AddUnreadableField() {
	s.unreadableFields.Add(1)
}

// AddCorruptedField records a field the journal itself reported as
// corrupt (EBADMSG). Cold path.
func (s *PromState) AddCorruptedField() {
	s.corruptedFields.Add(1)
}

// AddRequests bumps the count of child metrics requests served.
func (s *PromState) AddRequests(n uint64) {
	s.metricsRequests.Add(n)
}

// AddMessageLineIngested records one ingested journal line of msgLen
// bytes under key, bumping both the per-key lines/bytes counters.
func (s *PromState) AddMessageLineIngested(key MessageKey, msgLen int) {
	s.MessagesIngested.PushLine(key, msgLen)
}

// Snapshot reads every global counter and clones the per-key table,
// returning a by-value structure with no references into live state.
// Two snapshots taken with no intervening writes are equal.
func (s *PromState) Snapshot() PromSnapshot {
	return PromSnapshot{
		EntriesIngested:     s.entriesIngested.Load(),
		FieldsIngested:      s.fieldsIngested.Load(),
		DataBytesIngested:   s.dataBytesIngested.Load(),
		Faults:              s.faults.Load(),
		CursorDoubleRetries: s.cursorDoubleRetries.Load(),
		UnreadableFields:    s.unreadableFields.Load(),
		CorruptedFields:     s.corruptedFields.Load(),
		MetricsRequests:     s.metricsRequests.Load(),
		MessagesIngested:    s.MessagesIngested.Snapshot(),
	}
}

// PromSnapshot is the read-only, by-value copy of all counters at one
// instant (spec §3).
type PromSnapshot struct {
	EntriesIngested     uint64
	FieldsIngested      uint64
	DataBytesIngested   uint64
	Faults              uint64
	CursorDoubleRetries uint64
	UnreadableFields    uint64
	CorruptedFields     uint64
	MetricsRequests     uint64
	MessagesIngested    ByteCountSnapshot
}
