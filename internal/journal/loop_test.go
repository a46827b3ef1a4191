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

package journal

import (
	"io"
	"log"
	"syscall"
	"testing"

	"journalexporter/internal/metrics"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestLoop_ProcessesEntriesThenTerminates(t *testing.T) {
	state := metrics.NewPromState()
	fc := &fakeClient{entries: []fakeEntry{
		{fields: map[string]string{"_SYSTEMD_UNIT": "sshd.service", "PRIORITY": "6", "_UID": "123", "_GID": "123", "MESSAGE": "hello"}},
		{fields: map[string]string{"PRIORITY": "3", "MESSAGE": "oops"}},
	}}

	terminateAfter := 0
	terminated := func() bool {
		terminateAfter++
		return terminateAfter > 5
	}

	loop := NewLoop(func() (Client, error) { return fc, nil }, state, &countingNotifier{}, terminated)
	loop.Logger = discardLogger()

	if err := loop.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := state.Snapshot()
	if snap.EntriesIngested != 2 {
		t.Fatalf("got %d entries ingested, want 2", snap.EntriesIngested)
	}
	if !fc.closed {
		t.Fatalf("expected journal client to be closed")
	}

	total := 0
	snap.MessagesIngested.EachWhile(func(metrics.ByteCountEntry) bool { total++; return true })
	if total != 2 {
		t.Fatalf("expected 2 distinct message keys, got %d", total)
	}
}

func TestLoop_MalformedPriorityLandsInEmergencyBucket(t *testing.T) {
	state := metrics.NewPromState()
	fc := &fakeClient{entries: []fakeEntry{
		{fields: map[string]string{"PRIORITY": "9", "MESSAGE": "bad priority"}},
	}}
	terminated := func() bool { return fc.pos >= 1 }

	loop := NewLoop(func() (Client, error) { return fc, nil }, state, &countingNotifier{}, terminated)
	loop.Logger = discardLogger()
	if err := loop.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := state.Snapshot()
	if len(snap.MessagesIngested.PriorityTable[metrics.Emergency]) != 1 {
		t.Fatalf("expected malformed priority entry in Emergency bucket, table: %+v", snap.MessagesIngested.PriorityTable)
	}
	if snap.UnreadableFields != 1 {
		t.Fatalf("expected one unreadable-field bump, got %d", snap.UnreadableFields)
	}
}

func TestLoop_MissingPriorityDefaultsToDebug(t *testing.T) {
	state := metrics.NewPromState()
	fc := &fakeClient{entries: []fakeEntry{
		{fields: map[string]string{"MESSAGE": "no priority field"}},
	}}
	terminated := func() bool { return fc.pos >= 1 }

	loop := NewLoop(func() (Client, error) { return fc, nil }, state, &countingNotifier{}, terminated)
	loop.Logger = discardLogger()
	if err := loop.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := state.Snapshot()
	if len(snap.MessagesIngested.PriorityTable[metrics.Debug]) != 1 {
		t.Fatalf("expected missing-priority entry in Debug bucket")
	}
}

// S6 — cursor double retry: ECONNRESET twice consecutively with the
// cursor unchanged increments cursor_double_retries exactly once and
// surfaces the second error fatally.
func TestLoop_S6_CursorDoubleRetry(t *testing.T) {
	state := metrics.NewPromState()
	attempt := 0
	open := func() (Client, error) {
		attempt++
		if attempt == 1 {
			// First attempt processes one entry (establishing a
			// cursor) then fails on the next Wait.
			return &fakeClient{
				entries:       []fakeEntry{{fields: map[string]string{"MESSAGE": "m"}}},
				waitErrOnCall: map[int]error{1: syscall.ECONNRESET},
			}, nil
		}
		// Second attempt makes no progress and fails immediately.
		return &fakeClient{
			waitErrOnCall: map[int]error{0: syscall.ECONNRESET},
		}, nil
	}

	loop := NewLoop(open, state, &countingNotifier{}, func() bool { return false })
	loop.Logger = discardLogger()

	err := loop.Run()
	if err == nil {
		t.Fatalf("expected fatal error from cursor double retry")
	}
	if !IsRecoverable(err) {
		t.Fatalf("expected the surfaced error to still be ECONNRESET in kind")
	}

	snap := state.Snapshot()
	if snap.CursorDoubleRetries != 1 {
		t.Fatalf("got %d cursor double retries, want 1", snap.CursorDoubleRetries)
	}
	if snap.Faults != 2 {
		t.Fatalf("got %d faults, want 2 (one per failed attempt)", snap.Faults)
	}
}

func TestLoop_FatalErrorIsNotRetried(t *testing.T) {
	state := metrics.NewPromState()
	open := func() (Client, error) {
		return &fakeClient{waitErrOnCall: map[int]error{0: syscall.EACCES}}, nil
	}
	loop := NewLoop(open, state, &countingNotifier{}, func() bool { return false })
	loop.Logger = discardLogger()

	err := loop.Run()
	if err == nil {
		t.Fatalf("expected fatal error")
	}
	if state.Snapshot().Faults != 0 {
		t.Fatalf("a non-recoverable error must not bump the fault counter")
	}
}
