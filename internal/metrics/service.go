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

package metrics

import "fmt"

// MaxServiceNameLen is the largest accepted service name.
const MaxServiceNameLen = 256

// ServiceOutcome classifies the result of parsing a _SYSTEMD_UNIT field.
type ServiceOutcome int

const (
	// ServiceOK means name holds a valid service name.
	ServiceOK ServiceOutcome = iota
	// ServiceMissingField means the field was absent; treat as missing,
	// not an error.
	ServiceMissingField
	// ServiceInvalid means the field contained disallowed characters.
	ServiceInvalid
	// ServiceTooLong means the field exceeded MaxServiceNameLen.
	ServiceTooLong
)

// isServiceChar reports whether b is allowed in a service name:
// alphanumerics plus - _ . @ : and backslash.
func isServiceChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '_', '.', '@', ':', '\\':
		return true
	}
	return false
}

// ParseServiceName validates a raw _SYSTEMD_UNIT value. Empty input
// reports ServiceMissingField (not an error); overlong or disallowed
// input report ServiceTooLong/ServiceInvalid so the caller can bump the
// unreadable-fields counter and log a truncated preview without ever
// logging the full field contents.
func ParseServiceName(raw string) (name string, outcome ServiceOutcome) {
	if len(raw) == 0 {
		return "", ServiceMissingField
	}
	if len(raw) > MaxServiceNameLen {
		return "", ServiceTooLong
	}
	for i := 0; i < len(raw); i++ {
		if !isServiceChar(raw[i]) {
			return "", ServiceInvalid
		}
	}
	return raw, ServiceOK
}

// Preview truncates s to at most n bytes for safe logging, appending an
// ellipsis marker when truncation occurred. Message and service field
// contents must never be logged in full (spec §7).
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...(%d bytes total)", s[:n], len(s))
}
