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

package supervisor

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestBootstrap_FirstTaskExitTripsTerminateForOthers(t *testing.T) {
	term := NewTerminate()
	b := &Bootstrap{
		Terminate:   term,
		Logger:      discardLogger(),
		IPCTaskName: "ipc",
		Tasks: []Task{
			{Name: "journal", Run: func() error {
				<-term.Done()
				return nil
			}},
			{Name: "keywatch", Run: func() error {
				<-term.Done()
				return nil
			}},
			{Name: "ipc", Run: func() error {
				return errors.New("ipc stopped")
			}},
		},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run() }()

	select {
	case err := <-errCh:
		if err == nil || err.Error() != "ipc stopped" {
			t.Fatalf("got %v, want ipc stopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Bootstrap.Run did not return within 2s of a task exiting")
	}
}

func TestBootstrap_CleanExitReturnsNilFromIPCTask(t *testing.T) {
	term := NewTerminate()
	b := &Bootstrap{
		Terminate:   term,
		Logger:      discardLogger(),
		IPCTaskName: "ipc",
		Tasks: []Task{
			{Name: "ipc", Run: func() error {
				term.Trip()
				return nil
			}},
			{Name: "journal", Run: func() error {
				<-term.Done()
				return nil
			}},
		},
	}

	if err := b.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
