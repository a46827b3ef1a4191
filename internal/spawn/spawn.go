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

// Package spawn drives the child process lifecycle: it decides, on every
// exit, whether to respawn, and escalates to a fatal break once the
// fail-counter trips (spec §4.F).
package spawn

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"journalexporter/internal/failcounter"
	"journalexporter/internal/ipc"
)

// Outcome is the three-way result update_spawn in the original produces.
type Outcome int

const (
	// OutcomeReady means a new child generation is running; Stdout is its
	// readable pipe end.
	OutcomeReady Outcome = iota
	// OutcomeErr means the spawn attempt itself failed (e.g. exec could
	// not start the binary); the caller should retry on the next tick.
	OutcomeErr
	// OutcomeBreak means the fail-counter tripped or the previous child
	// exited in an unrecognized way; the caller must stop respawning.
	OutcomeBreak
)

// UpdateResult is UpdateSpawn's return value.
type UpdateResult struct {
	Outcome Outcome
	Stdout  io.ReadCloser
	Err     error
}

// ExitStatus is the subset of os.ProcessState this package needs,
// extracted as an interface so tests can supply a fake outcome without
// spawning a real process.
type ExitStatus interface {
	Exited() bool
	Success() bool
	String() string
}

// ChildOutcome is the previous child's termination, fed back into
// UpdateSpawn on every iteration. Exactly one of State or WaitErr is set;
// nil means this is the very first spawn attempt.
type ChildOutcome struct {
	State   ExitStatus
	WaitErr error
}

// ChildInput is the mutex-protected, optional handle to the running
// child's stdin (spec §5 "child_input: mutex-protected Option; cleared
// on pipe failure").
type ChildInput struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// Set installs the current generation's stdin handle, closing and
// discarding any previous one.
func (c *ChildInput) Set(w io.WriteCloser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w != nil {
		c.w.Close()
	}
	c.w = w
}

// Clear drops the handle without writing, used when the pipe is known
// broken.
func (c *ChildInput) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w = nil
}

// Write sends p to the child's stdin, returning an error (and clearing
// the handle) if none is set or the write itself fails.
func (c *ChildInput) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return 0, errors.New("spawn: no child input handle")
	}
	n, err := c.w.Write(p)
	if err != nil {
		c.w = nil
	}
	return n, err
}

// Manager owns the fail-counter, the shared IPC decoder, and the command
// template used to start each child generation.
type Manager struct {
	// NewCommand returns a fresh, unstarted *exec.Cmd for one child
	// generation. Called once per spawn attempt, including attempts whose
	// Start fails.
	NewCommand func() *exec.Cmd

	FailCounter *failcounter.FailCounter
	Decoder     *ipc.Decoder
	DecoderMu   *sync.Mutex
	ChildStdin  *ChildInput
	Logger      *log.Logger

	// Now defaults to time.Now; overridable for deterministic tests.
	Now func() time.Time

	// OnRespawn, OnFailCounterTrip, when non-nil, are called whenever a
	// new child generation starts or the fail-counter escalates to a
	// fatal break, respectively. These are the supervisor's only contact
	// point with package diag's operational counters (SPEC_FULL.md
	// "DOMAIN STACK"); a nil hook means no observer is wired and costs
	// nothing on the hot path.
	OnRespawn        func()
	OnFailCounterTrip func()

	// lastCmd is the currently running generation's *exec.Cmd, recorded
	// by spawnChild so Run can Wait on it after its stdout pipe closes.
	lastCmd *exec.Cmd
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// UpdateSpawn implements spec §4.F's update_spawn state machine.
func (m *Manager) UpdateSpawn(prev *ChildOutcome) UpdateResult {
	// prevErr carries the previous generation's own failure forward so
	// that, if the fail-counter trips below, the break surfaces that
	// failure's actual kind (spec §4.F step 3, scenarios S5/S6: "break
	// with the current result/error") instead of a generic message.
	var prevErr error
	if prev != nil {
		switch {
		case prev.WaitErr != nil:
			m.Logger.Printf("Child wait failed: %v", prev.WaitErr)
			prevErr = prev.WaitErr
		case prev.State != nil:
			if !prev.State.Exited() {
				return UpdateResult{Outcome: OutcomeBreak, Err: errors.New("spawn: child errored during termination")}
			}
			if !prev.State.Success() {
				m.Logger.Printf("Child exited: %s", prev.State.String())
				prevErr = fmt.Errorf("spawn: child exited: %s", prev.State.String())
			}
		default:
			return UpdateResult{Outcome: OutcomeBreak, Err: errors.New("spawn: child errored during termination")}
		}
	}

	if m.FailCounter.CheckFail(m.now()) {
		if m.OnFailCounterTrip != nil {
			m.OnFailCounterTrip()
		}
		if prevErr == nil {
			prevErr = fmt.Errorf("spawn: %d child failures within %s, giving up", failcounter.MaxFails, failcounter.Interval)
		}
		return UpdateResult{Outcome: OutcomeBreak, Err: prevErr}
	}

	m.DecoderMu.Lock()
	m.Decoder.Reset()
	m.DecoderMu.Unlock()

	stdin, stdout, err := m.spawnChild()
	if err != nil {
		return UpdateResult{Outcome: OutcomeErr, Err: err}
	}
	m.ChildStdin.Set(stdin)
	if m.OnRespawn != nil {
		m.OnRespawn()
	}
	return UpdateResult{Outcome: OutcomeReady, Stdout: stdout}
}

func (m *Manager) spawnChild() (io.WriteCloser, io.ReadCloser, error) {
	cmd := m.NewCommand()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("spawn: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("spawn: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("spawn: starting child: %w", err)
	}
	m.lastCmd = cmd
	return stdin, stdout, nil
}

// osProcessState adapts *os.ProcessState to ExitStatus; real spawns wrap
// cmd.Wait's result with this so the same UpdateSpawn logic runs in
// production and in tests.
type osProcessState struct {
	ws syscall.WaitStatus
	ok bool
}

func (s osProcessState) Exited() bool  { return s.ok && (s.ws.Exited() || s.ws.Signaled()) }
func (s osProcessState) Success() bool { return s.ok && s.ws.Exited() && s.ws.ExitStatus() == 0 }
func (s osProcessState) String() string {
	if !s.ok {
		return "unknown wait status"
	}
	switch {
	case s.ws.Exited():
		return fmt.Sprintf("exit status %d", s.ws.ExitStatus())
	case s.ws.Signaled():
		return fmt.Sprintf("signal: %s", s.ws.Signal())
	default:
		return "still running"
	}
}

// OutcomeFromWait builds the ChildOutcome to feed back into UpdateSpawn
// from an exec.Cmd's Wait result. waitErr is cmd.Wait()'s return value;
// when it is an *exec.ExitError the process did terminate and its wait
// status is still available via cmd.ProcessState, so this still reports
// a State rather than a WaitErr (a nonzero exit is not itself a wait
// failure — only an OS-level failure to reap the child is).
func OutcomeFromWait(cmd *exec.Cmd, waitErr error) *ChildOutcome {
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return &ChildOutcome{WaitErr: waitErr}
	}
	if cmd.ProcessState == nil {
		return &ChildOutcome{WaitErr: fmt.Errorf("spawn: no process state after wait")}
	}
	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	return &ChildOutcome{State: osProcessState{ws: ws, ok: ok}}
}
