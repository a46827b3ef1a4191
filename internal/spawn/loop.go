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
	"os/exec"
)

// Run drives the combined spawn-loop-plus-message-loop task (spec §4.G:
// "parent-IPC (spawn loop + message loop)"). It repeatedly calls
// UpdateSpawn, services the resulting generation's stdout with
// session.RunGeneration, waits on the child, and feeds the wait result
// back into the next UpdateSpawn call. It returns nil on a clean
// termination request and a non-nil error (the fail-counter's or the
// last child's) once UpdateSpawn reports OutcomeBreak.
func (s *Session) Run(terminate Terminated) error {
	var prev *ChildOutcome
	var cmd *exec.Cmd

	for {
		if terminate() {
			return nil
		}

		result := s.UpdateSpawn(prev)
		switch result.Outcome {
		case OutcomeBreak:
			return result.Err
		case OutcomeErr:
			s.Logger.Printf("Spawning child failed: %v", result.Err)
			prev = &ChildOutcome{WaitErr: result.Err}
			continue
		}

		cmd = s.lastCmd
		genErr := s.RunGeneration(result.Stdout, terminate)
		if genErr != nil {
			s.Logger.Printf("Child IPC session ended: %v", genErr)
		}

		if terminate() {
			if cmd != nil && cmd.Process != nil {
				cmd.Process.Kill()
			}
			return nil
		}

		waitErr := cmd.Wait()
		prev = OutcomeFromWait(cmd, waitErr)
	}
}
