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

// Package supervisor wires the journal loop, key-directory watcher, and
// child spawn manager into one process and owns the shared
// termination/done signaling between them (spec §4.G, §9).
package supervisor

import "sync"

// Terminate is a process-wide boolean flag polled by every blocking
// loop, and a "done" notifier tripped by whichever task exits first.
// Every long-running worker checks Terminated() before and after each
// blocking I/O step; once any one of them calls Trip, the others are
// expected to observe Terminated() and return within about a second —
// the longest blocking wait any loop performs.
type Terminate struct {
	mu      sync.Mutex
	tripped bool
	done    chan struct{}
	once    sync.Once
}

// NewTerminate returns an untripped Terminate.
func NewTerminate() *Terminate {
	return &Terminate{done: make(chan struct{})}
}

// Trip marks the flag tripped and closes Done. Safe to call more than
// once or concurrently from multiple goroutines.
func (t *Terminate) Trip() {
	t.mu.Lock()
	t.tripped = true
	t.mu.Unlock()
	t.once.Do(func() { close(t.done) })
}

// Terminated reports whether Trip has been called.
func (t *Terminate) Terminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tripped
}

// Done returns a channel closed once Trip has been called, for use in a
// select alongside a timer.
func (t *Terminate) Done() <-chan struct{} {
	return t.done
}
