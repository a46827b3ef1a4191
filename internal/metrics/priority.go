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

// Package metrics holds the concurrent keyed counter state that the
// journal ingestion loop writes to and the IPC codec reads a snapshot
// of, plus the OpenMetrics text renderer.
package metrics

// Priority is the eight-level syslog severity, most urgent first. The
// zero value is Emergency: a MessageKey built without an explicit
// priority (the malformed-field case, see ParsePriority) lands in the
// Emergency bucket rather than Debug, which is deliberate — it makes
// parse failures visible in dashboards rather than silently burying them
// in the lowest-severity bucket.
type Priority uint8

const (
	Emergency Priority = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Informational
	Debug
)

// NumPriorities is the width of the priority-partitioned counter table.
const NumPriorities = int(Debug) + 1

var priorityNames = [NumPriorities]string{
	Emergency:     "EMERG",
	Alert:         "ALERT",
	Critical:      "CRIT",
	Error:         "ERR",
	Warning:       "WARNING",
	Notice:        "NOTICE",
	Informational: "INFO",
	Debug:         "DEBUG",
}

// String returns the syslog short name used in the priority= label.
func (p Priority) String() string {
	if int(p) < 0 || int(p) >= NumPriorities {
		return "?"
	}
	return priorityNames[p]
}

// Severity returns the numeric severity index used in the severity=
// label; identical to the enum's ordinal.
func (p Priority) Severity() int {
	return int(p)
}

// ParsePriority parses the single-ASCII-digit PRIORITY journal field. A
// missing field is the caller's responsibility to default to Debug (see
// package journal); a present-but-malformed field is this function's
// responsibility to reject so the caller can leave the MessageKey at its
// zero-value Emergency bucket (spec: "absent -> Debug; malformed -> stays
// Emergency").
func ParsePriority(digit string) (Priority, bool) {
	if len(digit) != 1 {
		return 0, false
	}
	c := digit[0]
	if c < '0' || c > '7' {
		return 0, false
	}
	return Priority(c - '0'), true
}
