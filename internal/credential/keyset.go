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

import (
	"crypto/subtle"
	"fmt"
)

// KeySet is an immutable collection of at most MaxKeySetLen accepted
// keys. The zero value is an empty set.
type KeySet struct {
	keys []Key
}

// Empty returns an empty KeySet.
func Empty() KeySet {
	return KeySet{}
}

// New builds a KeySet from keys. It panics if keys exceeds
// MaxKeySetLen, matching the assertion in the original's KeySet::new: a
// caller assembling an oversized set from validated directory entries is
// a programming error (the directory watcher itself truncates to
// MaxKeySetLen entries before calling New).
func New(keys []Key) KeySet {
	if len(keys) > MaxKeySetLen {
		panic(fmt.Sprintf("credential: key set of %d exceeds maximum %d", len(keys), MaxKeySetLen))
	}
	cp := make([]Key, len(keys))
	copy(cp, keys)
	return KeySet{keys: cp}
}

// Len reports how many keys the set holds.
func (s KeySet) Len() int {
	return len(s.keys)
}

// Keys returns every key, in the order passed to New. Callers needing the
// wire encoding should use Hex on each entry rather than mutate the
// returned slice.
func (s KeySet) Keys() []Key {
	return s.keys
}

// Zero scrubs every key's backing buffer. Call on a KeySet that is about
// to be discarded (e.g. replaced by a fresh directory read).
func (s *KeySet) Zero() {
	for i := range s.keys {
		s.keys[i].Zero()
	}
	s.keys = nil
}

// CheckKey reports whether candidate matches any key in the set. The
// check runs in time dependent only on the set's length, not on which
// (if any) key matches nor on the byte-wise similarity between
// candidate and any stored key (spec §8 invariant 4, §9 "constant-time
// comparison").
//
// Each per-key comparison is done over the full fixed-width MaxKeyLen
// buffer via crypto/subtle.ConstantTimeCompare, which performs a
// branchless byte-by-byte XOR-accumulate rather than short-circuiting on
// the first mismatch and returns a 0/1 result without a data-dependent
// branch. Results across keys are
// combined with a plain bitwise OR (an arithmetic operation, not a
// branch), so every key in the set is always compared in full regardless
// of where — or whether — a match occurs.
func (s KeySet) CheckKey(candidate Key) bool {
	var found int
	for _, k := range s.keys {
		eq := subtle.ConstantTimeCompare(k.raw[:], candidate.raw[:])
		found |= eq
	}
	return found == 1
}
