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

package ipc

import "fmt"

// Opcodes sent by the child on the request stream.
const (
	OpRequestMetrics byte = 0x00
	OpRequestKey     byte = 0x01
	OpTrackRequest   byte = 0x02
)

// Request latches the flags and counters accumulated from a run of child
// opcodes since the last call to Decoder.TakeRequest.
type Request struct {
	Metrics bool
	Keys    bool
	Tracked uint64
}

// Decoder folds the child's opcode byte stream into latched request
// state. It holds the only copy of "has the version header been
// consumed" state for a pipe session, so a single Decoder must be reused
// across every read on that session and reset (via Reset) whenever the
// child process itself is replaced.
//
// Decoder is not safe for concurrent use; callers serialize access with
// an external mutex (see spec §5, "ipc::child::Decoder: mutex-protected").
type Decoder struct {
	versionPhase Phase

	metricsRequested bool
	keysRequested    bool
	trackedRequests  uint64
}

// NewDecoder returns a Decoder awaiting a fresh version header.
func NewDecoder() *Decoder {
	return &Decoder{versionPhase: NewPhase()}
}

// Reset clears all latched flags and re-arms the version header for a new
// child generation. Spec §4.F: the spawn manager resets the decoder on
// every respawn so a stray byte from a terminated child cannot leak into
// the next generation's request state.
func (d *Decoder) Reset() {
	d.versionPhase = NewPhase()
	d.metricsRequested = false
	d.keysRequested = false
	d.trackedRequests = 0
}

// ReadBytes folds buf into the decoder's state. It may be called any
// number of times with arbitrarily small fragments of the byte stream;
// feeding the same bytes in different chunk sizes always yields the same
// latched Request (spec §8 invariant 1).
func (d *Decoder) ReadBytes(buf []byte) {
	i := 0
	if !d.versionPhase.Done() {
		i = d.versionPhase.PushAll(buf)
		if !d.versionPhase.Done() {
			return
		}
		if d.versionPhase.Value() != Version {
			panic(fmt.Sprintf("ipc: unknown version header %#08x", d.versionPhase.Value()))
		}
	}
	for ; i < len(buf); i++ {
		switch b := buf[i]; b {
		case OpRequestMetrics:
			d.metricsRequested = true
		case OpRequestKey:
			d.keysRequested = true
		case OpTrackRequest:
			d.trackedRequests++
		default:
			panic(fmt.Sprintf("ipc: unknown opcode %#02x", b))
		}
	}
}

// TakeRequest atomically returns the latched flags and counter and clears
// them, leaving the version-consumed state intact.
func (d *Decoder) TakeRequest() Request {
	r := Request{
		Metrics: d.metricsRequested,
		Keys:    d.keysRequested,
		Tracked: d.trackedRequests,
	}
	d.metricsRequested = false
	d.keysRequested = false
	d.trackedRequests = 0
	return r
}
