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
	"fmt"
	"syscall"
	"time"
)

// fakeEntry is one journal entry a fakeClient replays.
type fakeEntry struct {
	fields map[string]string
}

// fakeClient is a minimal, entirely in-memory Client used by the loop
// tests so they never touch a real journald.
type fakeClient struct {
	entries []fakeEntry
	pos     int

	// waitErrOnCall, if set, is returned by the call-numbered (0-based)
	// invocation of Wait; every other call returns (true, nil) once
	// there are unread entries, else (false, nil).
	waitErrOnCall map[int]error
	waitCall      int

	closed bool
}

func (f *fakeClient) SetDataThreshold(uint64) error { return nil }
func (f *fakeClient) SeekCursor(string) error       { return nil }
func (f *fakeClient) SeekRealtime(time.Time) error  { return nil }

func (f *fakeClient) Wait(time.Duration) (bool, error) {
	call := f.waitCall
	f.waitCall++
	if err, ok := f.waitErrOnCall[call]; ok {
		return false, err
	}
	return f.pos < len(f.entries), nil
}

func (f *fakeClient) Next() (bool, error) {
	if f.pos >= len(f.entries) {
		return false, nil
	}
	f.pos++
	return true, nil
}

func (f *fakeClient) Cursor() (string, error) {
	return fmt.Sprintf("cursor-%d", f.pos), nil
}

func (f *fakeClient) GetData(field string) (string, error) {
	e := f.entries[f.pos-1]
	v, ok := e.fields[field]
	if !ok {
		return "", syscall.ENOENT
	}
	return v, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify() error {
	c.n++
	return nil
}
