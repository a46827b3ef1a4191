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

import "testing"

func TestFromHex_Valid(t *testing.T) {
	k, err := FromHex("AAbb0123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := k.Hex(), "aabb0123"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if k.Len() != 8 {
		t.Fatalf("got len %d want 8", k.Len())
	}
}

func TestFromHex_BoundaryLengths(t *testing.T) {
	cases := []struct {
		s     string
		valid bool
	}{
		{"", false},
		{"a", false},   // length 1, odd
		{"ab", true},   // minimum even
		{"abc", false}, // odd
		{string(make([]byte, 64)), false},
		{"aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899aa", false}, // 66 chars, too long
	}
	// build a valid 64-char string separately, since make([]byte,64) above is all zero bytes (invalid hex)
	sixtyFour := ""
	for i := 0; i < 32; i++ {
		sixtyFour += "ab"
	}
	cases = append(cases, struct {
		s     string
		valid bool
	}{sixtyFour, true})

	for _, c := range cases {
		_, err := FromHex(c.s)
		if c.valid && err != nil {
			t.Errorf("s=%q: unexpected error %v", c.s, err)
		}
		if !c.valid && err == nil {
			t.Errorf("s=%q: expected error, len=%d", c.s, len(c.s))
		}
	}
}

func TestFromHex_RejectsNonHex(t *testing.T) {
	if _, err := FromHex("zz"); err == nil {
		t.Fatalf("expected error for non-hex input")
	}
}

func TestFromHex_CaseInsensitiveNormalization(t *testing.T) {
	lower, err := FromHex("deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	upper, err := FromHex("DEADBEEF")
	if err != nil {
		t.Fatal(err)
	}
	if lower.Hex() != upper.Hex() {
		t.Fatalf("normalization mismatch: %q vs %q", lower.Hex(), upper.Hex())
	}
}

func TestKey_Zero(t *testing.T) {
	k, err := FromHex("abcd")
	if err != nil {
		t.Fatal(err)
	}
	k.Zero()
	if k.Len() != 0 {
		t.Fatalf("expected zeroed key to report length 0, got %d", k.Len())
	}
	for _, b := range k.raw {
		if b != 0 {
			t.Fatalf("expected all bytes zeroed")
		}
	}
}
