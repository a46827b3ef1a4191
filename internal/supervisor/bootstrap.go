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
	"log"
)

// Task is one of the three long-running workers the bootstrap drives:
// the journal ingestion loop, the key-directory watcher, and the
// combined parent-IPC spawn-loop-plus-message-loop (spec §4.G,
// §5 "Three long-lived worker threads in the parent").
type Task struct {
	Name string
	Run  func() error
}

// Bootstrap wires an arbitrary set of Tasks together with a shared
// Terminate notifier: whichever task returns first trips Terminate,
// and the bootstrap waits for every other task to observe it and return
// before computing a final exit result (spec §4.G, §5 "Cancellation /
// termination").
type Bootstrap struct {
	Terminate *Terminate
	Logger    *log.Logger
	Tasks     []Task

	// IPCTaskName identifies which Task's result becomes the overall
	// exit result when it ran to completion (spec §4.G: "Exit result is
	// the parent-IPC task's final status if it ran to completion;
	// otherwise a generic failure code").
	IPCTaskName string
}

// taskResult pairs a task's name with its returned error.
type taskResult struct {
	name string
	err  error
}

// Run starts every task in its own goroutine, waits for the first one
// to exit (which trips Terminate so the rest unwind cooperatively
// within about a second, per spec §5), joins all of them, and returns
// the IPC task's error if it completed, or a generic failure if it
// never ran or never finished.
func (b *Bootstrap) Run() error {
	results := make(chan taskResult, len(b.Tasks))

	for _, task := range b.Tasks {
		task := task
		go func() {
			err := task.Run()
			if err != nil {
				b.Logger.Printf("Task %s exited: %v", task.Name, err)
			} else {
				b.Logger.Printf("Task %s exited cleanly", task.Name)
			}
			b.Terminate.Trip()
			results <- taskResult{name: task.Name, err: err}
		}()
	}

	collected := make(map[string]error, len(b.Tasks))
	for range b.Tasks {
		r := <-results
		collected[r.name] = r.err
	}

	if err, ran := collected[b.IPCTaskName]; ran {
		return err
	}
	return errors.New("supervisor: parent-IPC task never completed")
}
