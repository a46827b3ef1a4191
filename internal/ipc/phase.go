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

// Package ipc implements the length-prefixed binary framing protocol used
// between the supervisor (parent) and its unprivileged child over a pipe.
package ipc

import "encoding/binary"

// Version is the only framing version either side currently speaks. Both
// directions begin every pipe session with a 4-byte little-endian encoding
// of this value.
const Version uint32 = 0

// VersionBytes returns the 4-byte little-endian encoding of Version, the
// header either side writes once at the start of a pipe session.
func VersionBytes() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, Version)
	return b
}

// Phase accumulates a little-endian uint32 one byte at a time across
// arbitrarily fragmented reads. It is the primitive that lets the
// version-header decoder survive a reader that hands it one byte per
// call: push each incoming byte as it arrives and check Done after every
// push, from any buffer boundary.
type Phase struct {
	value  uint32
	pushed int
}

// NewPhase returns a Phase ready to accumulate a fresh 4-byte value.
func NewPhase() Phase {
	return Phase{}
}

// Done reports whether four bytes have been accumulated.
func (p *Phase) Done() bool {
	return p.pushed == 4
}

// Push folds one more little-endian byte into the accumulator. It must
// not be called again once Done reports true.
func (p *Phase) Push(b byte) {
	if p.pushed >= 4 {
		panic("ipc: Phase.Push called after completion")
	}
	p.value |= uint32(b) << (8 * uint(p.pushed))
	p.pushed++
}

// Value returns the fully assembled little-endian uint32. Only
// meaningful once Done reports true.
func (p *Phase) Value() uint32 {
	return p.value
}

// PushAll feeds bytes from buf into the phase until either buf is
// exhausted or the phase completes, and returns the number of bytes
// consumed from buf.
func (p *Phase) PushAll(buf []byte) (consumed int) {
	for consumed < len(buf) && !p.Done() {
		p.Push(buf[consumed])
		consumed++
	}
	return consumed
}
