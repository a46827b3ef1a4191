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

// Package checkpoint implements the optional journal-cursor persistence
// backends described in SPEC_FULL.md ("Cursor persistence"). spec.md's
// core treats the cursor as in-memory only (§3, §6); this package
// supplements that with backends a restart can resume from exactly,
// selected by -cursor-backend and defaulting to the spec-faithful
// in-memory store.
package checkpoint

// Store is the interface journal.Loop checkpoints cursor advances
// through; it matches journal.CursorStore structurally so either backend
// can be assigned directly to a Loop's Checkpoint field.
type Store interface {
	LoadCursor() (cursor string, ok bool, err error)
	SaveCursor(cursor string) error
}

// Memory never reports a saved cursor and discards every save,
// reproducing spec.md's "Persisted state: None" exactly. It is the
// default backend.
type Memory struct{}

func (Memory) LoadCursor() (string, bool, error) { return "", false, nil }
func (Memory) SaveCursor(string) error            { return nil }
