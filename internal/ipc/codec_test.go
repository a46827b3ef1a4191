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
	"bytes"
	"testing"
)

// S1 — bare version then metrics request.
func TestDecoder_S1_BareVersionThenMetrics(t *testing.T) {
	d := NewDecoder()
	d.ReadBytes([]byte{0x00, 0x00, 0x00, 0x00, OpRequestMetrics})
	got := d.TakeRequest()
	want := Request{Metrics: true, Keys: false, Tracked: 0}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

// S2 — tracked then metrics in one read.
func TestDecoder_S2_TrackedThenMetrics(t *testing.T) {
	d := NewDecoder()
	d.ReadBytes([]byte{0x00, 0x00, 0x00, 0x00, OpTrackRequest, OpRequestMetrics})
	got := d.TakeRequest()
	want := Request{Metrics: true, Keys: false, Tracked: 1}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

// Invariant 1: fragmentation-independence. Feeding every byte
// individually must latch the same request as feeding the whole buffer
// at once.
func TestDecoder_FragmentationIndependence(t *testing.T) {
	full := []byte{0x00, 0x00, 0x00, 0x00, OpRequestKey, OpTrackRequest, OpTrackRequest, OpRequestMetrics}

	whole := NewDecoder()
	whole.ReadBytes(full)
	want := whole.TakeRequest()

	for chunkSize := 1; chunkSize <= len(full); chunkSize++ {
		d := NewDecoder()
		for i := 0; i < len(full); i += chunkSize {
			end := i + chunkSize
			if end > len(full) {
				end = len(full)
			}
			d.ReadBytes(full[i:end])
		}
		got := d.TakeRequest()
		if got != want {
			t.Fatalf("chunkSize=%d: got %+v want %+v", chunkSize, got, want)
		}
	}
}

func TestDecoder_TakeRequestClearsButKeepsVersion(t *testing.T) {
	d := NewDecoder()
	d.ReadBytes([]byte{0x00, 0x00, 0x00, 0x00, OpRequestMetrics})
	_ = d.TakeRequest()
	// Version already consumed; a bare opcode with no header now latches.
	d.ReadBytes([]byte{OpRequestKey})
	got := d.TakeRequest()
	if got != (Request{Keys: true}) {
		t.Fatalf("got %+v want Keys-only request", got)
	}
}

func TestDecoder_UnknownOpcodePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on unknown opcode")
		}
	}()
	d := NewDecoder()
	d.ReadBytes([]byte{0x00, 0x00, 0x00, 0x00, 0xFF})
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder()
	d.ReadBytes([]byte{0x00, 0x00, 0x00, 0x00, OpRequestMetrics})
	d.Reset()
	// Version must be re-consumed after Reset.
	d.ReadBytes([]byte{0x00})
	got := d.TakeRequest()
	if got != (Request{}) {
		t.Fatalf("expected no latched request mid version header, got %+v", got)
	}
}

func TestWriteMetricsFrame_HeaderMatchesBodyLength(t *testing.T) {
	body := []byte("# EOF\n")
	frame := WriteMetricsFrame(body)
	if frame[0] != FrameMetrics {
		t.Fatalf("expected metrics opcode")
	}
	if len(frame) != 5+len(body) {
		t.Fatalf("unexpected frame length %d", len(frame))
	}
	if !bytes.Equal(frame[5:], body) {
		t.Fatalf("body mismatch")
	}
}

func TestWriteKeySetFrame_S4TwoKeys(t *testing.T) {
	frame := WriteKeySetFrame([][]byte{
		[]byte("0123456789abcdef"),
		[]byte("aaaaaaaaaaaaaaaa"),
	})
	want := []byte{0x01, 0x02, 0x0F}
	want = append(want, "0123456789abcdef"...)
	want = append(want, 0x0F)
	want = append(want, "aaaaaaaaaaaaaaaa"...)
	if !bytes.Equal(frame, want) {
		t.Fatalf("got % x want % x", frame, want)
	}
}

func TestWriteKeySetFrame_Empty(t *testing.T) {
	frame := WriteKeySetFrame(nil)
	if !bytes.Equal(frame, []byte{0x01, 0x00}) {
		t.Fatalf("got % x", frame)
	}
}

// Invariant 2: round-trip encode/decode for key sets up to the maximum.
func TestKeySetRoundTrip(t *testing.T) {
	keys := [][]byte{[]byte("ab"), []byte("cdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcd")}
	frame := WriteKeySetFrame(keys)

	pd := NewParentDecoder()
	pd.ReadBytes(append([]byte{0x00, 0x00, 0x00, 0x00}, frame...))
	got := pd.Response().KeySet
	if len(got) != len(keys) {
		t.Fatalf("got %d keys want %d", len(got), len(keys))
	}
	for i := range keys {
		if !bytes.Equal(got[i], keys[i]) {
			t.Fatalf("key %d: got %q want %q", i, got[i], keys[i])
		}
	}
}

func TestParentDecoder_MetricsFragmented(t *testing.T) {
	body := []byte("hello world, this is a test metrics body")
	frame := append([]byte{0x00, 0x00, 0x00, 0x00}, WriteMetricsFrame(body)...)
	for chunkSize := 1; chunkSize <= len(frame); chunkSize++ {
		pd := NewParentDecoder()
		for i := 0; i < len(frame); i += chunkSize {
			end := i + chunkSize
			if end > len(frame) {
				end = len(frame)
			}
			pd.ReadBytes(frame[i:end])
		}
		if !bytes.Equal(pd.Response().Metrics, body) {
			t.Fatalf("chunkSize=%d: got %q want %q", chunkSize, pd.Response().Metrics, body)
		}
	}
}
