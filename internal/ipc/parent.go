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

import (
	"encoding/binary"
	"fmt"
)

// Opcodes used on the parent→child response stream.
const (
	FrameMetrics byte = 0x00
	FrameKeySet  byte = 0x01
)

// metricsHeaderLen is the reserved-then-backpatched header: one opcode
// byte plus a 4-byte little-endian body length.
const metricsHeaderLen = 5

// WriteMetricsFrame renders a metrics-frame response: a reserved 5-byte
// header (opcode 0x00 + little-endian body length), followed by body
// verbatim, with the length back-patched once body's size is known. The
// caller supplies the already-rendered OpenMetrics body (see package
// metrics for the renderer).
func WriteMetricsFrame(body []byte) []byte {
	out := make([]byte, metricsHeaderLen+len(body))
	out[0] = FrameMetrics
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(body)))
	copy(out[metricsHeaderLen:], body)
	return out
}

// WriteKeySetFrame renders a receive-key-set frame: opcode 0x01, a
// 1-byte count, then per key a (len-1) length byte followed by that many
// ASCII hex bytes. keys must already be normalized lowercase hex
// (credential.Key.Hex does this); it panics if constraints are violated
// since a caller producing an out-of-range key set is a programming
// error, not a runtime condition (mirrors the assertions in
// original_source/src/state/ipc/parent.rs receive_key_set_bytes).
func WriteKeySetFrame(keys [][]byte) []byte {
	if len(keys) > 255 {
		panic(fmt.Sprintf("ipc: key set too large: %d keys", len(keys)))
	}
	out := make([]byte, 0, 2+len(keys)*2)
	out = append(out, FrameKeySet, byte(len(keys)))
	for _, k := range keys {
		if len(k) == 0 || len(k) > 255 {
			panic(fmt.Sprintf("ipc: key length out of range: %d", len(k)))
		}
		out = append(out, byte(len(k)-1))
		out = append(out, k...)
	}
	return out
}

// ParentResponse is the parsed form of whatever the parent sent back on
// a single pipe session: at most one metrics body and one key set,
// assembled across however many ReadBytes calls were needed.
type ParentResponse struct {
	Metrics []byte
	KeySet  [][]byte
}

// parentState enumerates where ParentDecoder currently is in the
// response stream.
type parentState int

const (
	parentStateVersion parentState = iota
	parentStateOpcode
	parentStateMetricsLen
	parentStateMetricsBody
	parentStateKeySetCount
	parentStateKeySetEntryLen
	parentStateKeySetEntryBody
)

// ParentDecoder parses the parent→child response stream byte by byte,
// tolerating arbitrary fragmentation exactly like Decoder does for the
// child→parent direction. It exists primarily so tests can assert the
// exact bytes WriteMetricsFrame/WriteKeySetFrame produce by decoding them
// back, mirroring the parent-side test decoder in
// original_source/src/state/ipc/parent.rs.
type ParentDecoder struct {
	versionPhase Phase
	lenPhase     Phase
	state        parentState

	metrics []byte
	metricsWant int

	keySet        [][]byte
	keySetWant    int
	curEntryWant  int
	curEntry      []byte
}

// NewParentDecoder returns a decoder awaiting the version header.
func NewParentDecoder() *ParentDecoder {
	return &ParentDecoder{versionPhase: NewPhase(), lenPhase: NewPhase(), state: parentStateVersion}
}

// ReadBytes folds buf into the decoder. Call Response once the expected
// frame(s) have been fully consumed.
func (d *ParentDecoder) ReadBytes(buf []byte) {
	i := 0
	for i < len(buf) {
		switch d.state {
		case parentStateVersion:
			n := d.versionPhase.PushAll(buf[i:])
			i += n
			if !d.versionPhase.Done() {
				return
			}
			if d.versionPhase.Value() != Version {
				panic(fmt.Sprintf("ipc: unknown version header %#08x", d.versionPhase.Value()))
			}
			d.state = parentStateOpcode
		case parentStateOpcode:
			op := buf[i]
			i++
			switch op {
			case FrameMetrics:
				d.lenPhase = NewPhase()
				d.state = parentStateMetricsLen
			case FrameKeySet:
				d.state = parentStateKeySetCount
			default:
				panic(fmt.Sprintf("ipc: unknown frame opcode %#02x", op))
			}
		case parentStateMetricsLen:
			n := d.lenPhase.PushAll(buf[i:])
			i += n
			if !d.lenPhase.Done() {
				return
			}
			d.metricsWant = int(d.lenPhase.Value())
			d.metrics = make([]byte, 0, d.metricsWant)
			d.state = parentStateMetricsBody
			if d.metricsWant == 0 {
				d.state = parentStateOpcode
			}
		case parentStateMetricsBody:
			need := d.metricsWant - len(d.metrics)
			take := minInt(need, len(buf)-i)
			d.metrics = append(d.metrics, buf[i:i+take]...)
			i += take
			if len(d.metrics) == d.metricsWant {
				d.state = parentStateOpcode
			} else {
				return
			}
		case parentStateKeySetCount:
			d.keySetWant = int(buf[i])
			i++
			d.keySet = make([][]byte, 0, d.keySetWant)
			if d.keySetWant == 0 {
				d.state = parentStateOpcode
			} else {
				d.state = parentStateKeySetEntryLen
			}
		case parentStateKeySetEntryLen:
			d.curEntryWant = int(buf[i]) + 1
			i++
			d.curEntry = make([]byte, 0, d.curEntryWant)
			d.state = parentStateKeySetEntryBody
		case parentStateKeySetEntryBody:
			need := d.curEntryWant - len(d.curEntry)
			take := minInt(need, len(buf)-i)
			d.curEntry = append(d.curEntry, buf[i:i+take]...)
			i += take
			if len(d.curEntry) == d.curEntryWant {
				d.keySet = append(d.keySet, d.curEntry)
				if len(d.keySet) == d.keySetWant {
					d.state = parentStateOpcode
				} else {
					d.state = parentStateKeySetEntryLen
				}
			} else {
				return
			}
		}
	}
}

// Response returns whatever has been fully decoded so far.
func (d *ParentDecoder) Response() ParentResponse {
	return ParentResponse{Metrics: d.metrics, KeySet: d.keySet}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
