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

package spawn

import (
	"errors"
	"io"
	"log"
	"os/exec"
	"sync"
	"testing"
	"time"

	"journalexporter/internal/failcounter"
	"journalexporter/internal/ipc"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fakeExitStatus struct {
	exited  bool
	success bool
}

func (f fakeExitStatus) Exited() bool    { return f.exited }
func (f fakeExitStatus) Success() bool   { return f.success }
func (f fakeExitStatus) String() string  { return "fake" }

func newTestManager(now time.Time, newCmd func() *exec.Cmd) *Manager {
	t := now
	return &Manager{
		NewCommand:  newCmd,
		FailCounter: failcounter.New(),
		Decoder:     ipc.NewDecoder(),
		DecoderMu:   &sync.Mutex{},
		ChildStdin:  &ChildInput{},
		Logger:      discardLogger(),
		Now:         func() time.Time { return t },
	}
}

func trueCmd() *exec.Cmd { return exec.Command("true") }

func TestUpdateSpawn_FirstCallSpawnsReady(t *testing.T) {
	m := newTestManager(time.Unix(0, 0), trueCmd)
	result := m.UpdateSpawn(nil)
	if result.Outcome != OutcomeReady {
		t.Fatalf("got outcome %v, want Ready: %v", result.Outcome, result.Err)
	}
	if result.Stdout == nil {
		t.Fatalf("expected a stdout pipe")
	}
	result.Stdout.Close()
}

func TestUpdateSpawn_UnrecognizedTerminationBreaks(t *testing.T) {
	m := newTestManager(time.Unix(0, 0), trueCmd)
	result := m.UpdateSpawn(&ChildOutcome{State: fakeExitStatus{exited: false}})
	if result.Outcome != OutcomeBreak {
		t.Fatalf("got outcome %v, want Break", result.Outcome)
	}
}

func TestUpdateSpawn_FiveFailuresWithinWindowBreaks(t *testing.T) {
	base := time.Unix(100, 0)
	m := &Manager{
		NewCommand:  trueCmd,
		FailCounter: failcounter.New(),
		Decoder:     ipc.NewDecoder(),
		DecoderMu:   &sync.Mutex{},
		ChildStdin:  &ChildInput{},
		Logger:      discardLogger(),
	}

	var last UpdateResult
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		m.Now = func() time.Time { return ts }
		var prev *ChildOutcome
		if i > 0 {
			prev = &ChildOutcome{State: fakeExitStatus{exited: true, success: false}}
		}
		last = m.UpdateSpawn(prev)
		if i < 4 && last.Outcome != OutcomeReady {
			t.Fatalf("call %d: got outcome %v, want Ready", i, last.Outcome)
		}
		if last.Stdout != nil {
			last.Stdout.Close()
		}
	}
	if last.Outcome != OutcomeBreak {
		t.Fatalf("got outcome %v on fifth call, want Break", last.Outcome)
	}
}

func TestUpdateSpawn_ResetsDecoderOnEverySpawn(t *testing.T) {
	m := newTestManager(time.Unix(0, 0), trueCmd)
	m.Decoder.ReadBytes(ipc.VersionBytes())
	m.Decoder.ReadBytes([]byte{ipc.OpRequestMetrics})
	req := m.Decoder.TakeRequest()
	if !req.Metrics {
		t.Fatalf("setup: expected metrics flag set before reset")
	}
	m.Decoder.ReadBytes(ipc.VersionBytes())
	m.Decoder.ReadBytes([]byte{ipc.OpRequestMetrics})

	result := m.UpdateSpawn(nil)
	if result.Stdout != nil {
		result.Stdout.Close()
	}

	m.Decoder.ReadBytes(ipc.VersionBytes())
	req = m.Decoder.TakeRequest()
	if req.Metrics {
		t.Fatalf("expected decoder to have been reset by UpdateSpawn")
	}
}

func TestChildInput_WriteWithoutSetFails(t *testing.T) {
	ci := &ChildInput{}
	if _, err := ci.Write([]byte("x")); err == nil {
		t.Fatalf("expected error writing with no handle set")
	}
}

func TestChildInput_ClearStopsWrites(t *testing.T) {
	ci := &ChildInput{}
	pr, pw := io.Pipe()
	defer pr.Close()
	ci.Set(pw)
	ci.Clear()
	if _, err := ci.Write([]byte("x")); err == nil {
		t.Fatalf("expected error after Clear")
	}
}

func TestOutcomeFromWait_NonExitErrorIsWaitErr(t *testing.T) {
	cmd := exec.Command("/does/not/exist")
	err := cmd.Start()
	if err == nil {
		t.Fatalf("expected Start to fail for a nonexistent binary")
	}
	outcome := OutcomeFromWait(cmd, err)
	if outcome.WaitErr == nil {
		t.Fatalf("expected WaitErr to be set")
	}
}

func TestOutcomeFromWait_ExitErrorIsState(t *testing.T) {
	cmd := exec.Command("false")
	if err := cmd.Run(); err == nil {
		t.Fatalf("expected `false` to exit nonzero")
	} else if !errors.As(err, new(*exec.ExitError)) {
		t.Fatalf("expected an *exec.ExitError, got %T: %v", err, err)
	} else {
		outcome := OutcomeFromWait(cmd, err)
		if outcome.State == nil {
			t.Fatalf("expected State to be set for a normal nonzero exit")
		}
		if outcome.State.Success() {
			t.Fatalf("expected Success() to be false for exit code 1")
		}
	}
}
