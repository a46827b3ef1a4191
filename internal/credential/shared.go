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

package credential

import "sync"

// SharedKeySet is a KeySet published by the key-directory watcher and
// read concurrently by the IPC message loop (to serve RequestKey) and
// the HTTP auth layer (to check a presented credential). The zero value
// holds an empty set.
type SharedKeySet struct {
	mu sync.RWMutex
	ks KeySet
}

// Store replaces the published set, zeroing the one it replaces.
func (s *SharedKeySet) Store(ks KeySet) {
	s.mu.Lock()
	old := s.ks
	s.ks = ks
	s.mu.Unlock()
	old.Zero()
}

// Load returns the currently published set.
func (s *SharedKeySet) Load() KeySet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ks
}

// CheckKey reports whether candidate is in the currently published set.
func (s *SharedKeySet) CheckKey(candidate Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ks.CheckKey(candidate)
}
