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
	"log"
	"os"
	"time"

	"journalexporter/internal/metrics"
)

// watchdogEvery is how many ingested entries pass between heartbeats
// while entries are flowing; a heartbeat also fires whenever Next()
// exhausts the current batch.
const watchdogEvery = 1000

// waitTimeout bounds each blocking Wait call so the terminate flag gets
// polled at least this often.
const waitTimeout = 1 * time.Second

// Notifier sends a watchdog heartbeat; satisfied by
// journalexporter/internal/watchdog.Notifier without importing it here,
// avoiding a dependency from this package on the supervisor wiring.
type Notifier interface {
	Notify() error
}

// Terminated is polled cooperatively before and after every blocking
// step; satisfied by (*supervisor.Terminate).Terminated.
type Terminated func() bool

// CursorStore persists the last-committed cursor across process
// restarts. Spec.md's core treats the cursor as in-memory only; this is
// the optional supplemental checkpoint backend (see SPEC_FULL.md
// "Cursor persistence"). The memory-only implementation always reports
// no saved cursor, which reproduces the core's original behavior
// exactly.
type CursorStore interface {
	LoadCursor() (cursor string, ok bool, err error)
	SaveCursor(cursor string) error
}

// Loop drives the cursor-based journal replay.
type Loop struct {
	// Open returns a freshly opened, unseeked journal client. Called
	// once per inner-loop attempt so a failed attempt always starts
	// from a clean handle.
	Open func() (Client, error)

	State      *metrics.PromState
	Notify     Notifier
	Terminated Terminated
	Logger     *log.Logger
	Checkpoint CursorStore

	// OnFault, when non-nil, is called alongside every State.AddFault(),
	// the loop's only contact point with package diag's supervisor
	// operational counters (SPEC_FULL.md "DOMAIN STACK").
	OnFault func()

	lastFailureCursor string
	haveLastFailure   bool
}

// NewLoop returns a Loop that logs to stderr and uses an in-memory
// checkpoint store that never reports a saved cursor; callers typically
// override Logger and Checkpoint.
func NewLoop(open func() (Client, error), state *metrics.PromState, notify Notifier, terminated Terminated) *Loop {
	return &Loop{
		Open:       open,
		State:      state,
		Notify:     notify,
		Terminated: terminated,
		Logger:     log.New(os.Stderr, "journal: ", log.LstdFlags),
		Checkpoint: memoryCheckpoint{},
	}
}

// Run is the outer loop (spec §4.D). It notifies the watchdog once,
// then repeatedly attempts the inner loop: a clean return from the
// inner loop (graceful termination) returns nil; a recoverable errno
// bumps the fault counter and retries, unless the resume cursor is
// unchanged since the previous failed attempt, in which case it
// degrades to a fatal cursor-double-retry.
func (l *Loop) Run() error {
	if err := l.Notify.Notify(); err != nil {
		l.Logger.Printf("Initial watchdog notify failed: %v", err)
	}

	cursor, haveCursor, err := l.Checkpoint.LoadCursor()
	if err != nil {
		l.Logger.Printf("Cursor checkpoint load failed, starting fresh: %v", err)
		haveCursor = false
	}

	for {
		if l.Terminated() {
			return nil
		}

		newCursor, innerErr := l.runOnce(cursor, haveCursor)
		if innerErr == nil {
			return nil
		}

		if !IsRecoverable(innerErr) {
			return innerErr
		}

		l.State.AddFault()
		if l.OnFault != nil {
			l.OnFault()
		}
		l.Logger.Printf("Recoverable journal fault, retrying: %v", innerErr)

		if newCursor != "" && l.haveLastFailure && newCursor == l.lastFailureCursor {
			l.State.AddCursorDoubleRetry()
			return innerErr
		}
		l.haveLastFailure = true
		l.lastFailureCursor = newCursor
		cursor = newCursor
		haveCursor = newCursor != ""
	}
}

// runOnce performs one full inner-loop attempt: open, seek, then
// wait/iterate until the journal client errors or the terminate flag
// trips. It returns the last cursor it successfully saved, for the outer
// loop's double-retry detection.
func (l *Loop) runOnce(resumeCursor string, resume bool) (lastCursor string, err error) {
	c, err := l.Open()
	if err != nil {
		return resumeCursor, err
	}
	defer c.Close()

	if err := c.SetDataThreshold(DataThreshold); err != nil {
		return resumeCursor, err
	}

	if resume {
		if err := c.SeekCursor(resumeCursor); err != nil {
			return resumeCursor, err
		}
	} else {
		if err := c.SeekRealtime(time.Now().Add(-InitialLookback)); err != nil {
			return resumeCursor, err
		}
	}

	lastCursor = resumeCursor
	sinceHeartbeat := 0

	for {
		if l.Terminated() {
			return lastCursor, nil
		}

		woke, err := c.Wait(waitTimeout)
		if err != nil {
			return lastCursor, err
		}

		if l.Terminated() {
			return lastCursor, nil
		}

		if !woke {
			continue
		}

		for {
			ok, err := c.Next()
			if err != nil {
				return lastCursor, err
			}
			if !ok {
				break
			}

			l.State.AddEntryIngested()

			cur, err := c.Cursor()
			if err != nil {
				return lastCursor, err
			}
			lastCursor = cur
			if err := l.Checkpoint.SaveCursor(cur); err != nil {
				l.Logger.Printf("Cursor checkpoint save failed: %v", err)
			}

			entry, err := extractEntry(c, l.State, l.Logger)
			if err != nil {
				return lastCursor, err
			}
			l.State.AddMessageLineIngested(entry.key, len(entry.message))

			sinceHeartbeat++
			if sinceHeartbeat >= watchdogEvery {
				if err := l.Notify.Notify(); err != nil {
					l.Logger.Printf("Watchdog notify failed: %v", err)
				}
				sinceHeartbeat = 0
			}
		}

		if err := l.Notify.Notify(); err != nil {
			l.Logger.Printf("Watchdog notify failed: %v", err)
		}
	}
}

// memoryCheckpoint never reports a saved cursor and discards every
// save, reproducing the core's stateless-across-restarts behavior
// exactly (spec §3 "Cursor ... persisted per-iteration" refers to
// in-process resumption across a single run, not across restarts; spec
// §6 "Persisted state: None").
type memoryCheckpoint struct{}

func (memoryCheckpoint) LoadCursor() (string, bool, error) { return "", false, nil }
func (memoryCheckpoint) SaveCursor(string) error            { return nil }
