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

// Package journal drives the cursor-based journal replay loop: it reads
// entries through a small Client interface (so tests never need a real
// journald), updates the counter state in package metrics, and fires
// watchdog heartbeats. Field decode and fault classification follow
// spec §4.D exactly.
package journal

import (
	"errors"
	"syscall"
	"time"
)

// DataThreshold is the journal's maximum field size; exceeding it
// degrades that field to "unreadable" rather than returning partial
// data. Fixed at exactly 64 KiB (spec §4.D, §8 boundary behavior).
const DataThreshold = 64 * 1024

// InitialLookback bounds how far back a fresh (non-resuming) seek looks:
// up to one minute of history on first start.
const InitialLookback = 60 * time.Second

// Client abstracts the journald bindings the loop needs. A real
// implementation wraps github.com/coreos/go-systemd/v22/sdjournal (see
// sdjournal_client.go); tests use a fake that replays a fixed entry
// list.
type Client interface {
	// SetDataThreshold bounds the size of any single field value the
	// journal will hand back before reporting it unreadable.
	SetDataThreshold(bytes uint64) error
	// SeekCursor resumes iteration from a previously saved cursor.
	SeekCursor(cursor string) error
	// SeekRealtime seeks to the entry nearest the given time.
	SeekRealtime(t time.Time) error
	// Wait blocks up to timeout for new entries, or returns sooner if
	// data is already available. woke reports whether there may be new
	// data to read via Next.
	Wait(timeout time.Duration) (woke bool, err error)
	// Next advances to the next entry. ok is false once the journal is
	// exhausted for this wait cycle.
	Next() (ok bool, err error)
	// Cursor returns an opaque token identifying the current read
	// position, to be persisted and passed to SeekCursor on resume.
	Cursor() (string, error)
	// GetData fetches one field's value for the current entry. Errors
	// are classified by FieldError.
	GetData(field string) (string, error)
	// Close releases the journal handle.
	Close() error
}

// FieldOutcome classifies a GetData result per spec §4.D.
type FieldOutcome int

const (
	FieldOK FieldOutcome = iota
	// FieldMissing: ENOENT, the field is simply absent on this entry.
	FieldMissing
	// FieldUnreadable: E2BIG/ENOBUFS, present but too large/truncated.
	FieldUnreadable
	// FieldCorrupted: EBADMSG, the journal itself reports corruption.
	FieldCorrupted
)

// ClassifyFieldError maps a GetData error to a FieldOutcome. A nil error
// (including one already carrying FieldOK's meaning) returns FieldOK.
// Any error outside the three recognized errno values is returned
// unmodified as the fatal second return value.
func ClassifyFieldError(err error) (outcome FieldOutcome, fatal error) {
	if err == nil {
		return FieldOK, nil
	}
	switch {
	case errors.Is(err, syscall.ENOENT):
		return FieldMissing, nil
	case errors.Is(err, syscall.E2BIG), errors.Is(err, syscall.ENOBUFS):
		return FieldUnreadable, nil
	case errors.Is(err, syscall.EBADMSG):
		return FieldCorrupted, nil
	default:
		return FieldOK, err
	}
}

// recoverableErrnos is the closed set of journal I/O faults the outer
// loop retries rather than treating as fatal (spec §4.D).
var recoverableErrnos = map[syscall.Errno]struct{}{
	syscall.EPIPE:       {},
	syscall.EBADF:       {},
	syscall.ECONNRESET:  {},
	syscall.ECONNABORTED: {},
	syscall.ETIMEDOUT:   {},
	syscall.EMFILE:      {},
	syscall.ENFILE:      {},
}

// IsRecoverable reports whether err is one of the connection/fd-exhaustion
// errno values the outer loop is allowed to retry.
func IsRecoverable(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	_, ok := recoverableErrnos[errno]
	return ok
}
