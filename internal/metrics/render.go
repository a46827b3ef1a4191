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

import (
	"strconv"
	"strings"
	"time"
)

// NameTable resolves numeric uid/gid to display names. User/group table
// lookup is an external collaborator (spec §1); this interface is the
// core's only contact point with it.
type NameTable interface {
	UserName(uid uint32) (name string, ok bool)
	GroupName(gid uint32) (name string, ok bool)
}

// NoNameTable never resolves a name; every uid/gid renders as "?". Used
// when no table has been wired up.
type NoNameTable struct{}

func (NoNameTable) UserName(uint32) (string, bool)  { return "", false }
func (NoNameTable) GroupName(uint32) (string, bool) { return "", false }

// Environment carries process-lifetime values the renderer needs but
// that do not belong to PromState itself.
type Environment struct {
	// Created is the process (or PromState) start time, emitted as the
	// _created timestamp on every counter family.
	Created time.Time
}

type globalCounterSpec struct {
	name string
	get  func(PromSnapshot) uint64
}

// globalCounters lists the eight process-wide counters in the fixed
// order they are rendered, matching render_openapi_metrics.
var globalCounters = []globalCounterSpec{
	{"journald_entries_ingested", func(s PromSnapshot) uint64 { return s.EntriesIngested }},
	{"journald_fields_ingested", func(s PromSnapshot) uint64 { return s.FieldsIngested }},
	{"journald_data_bytes_ingested", func(s PromSnapshot) uint64 { return s.DataBytesIngested }},
	{"journald_faults", func(s PromSnapshot) uint64 { return s.Faults }},
	{"journald_cursor_double_retries", func(s PromSnapshot) uint64 { return s.CursorDoubleRetries }},
	{"journald_unreadable_fields", func(s PromSnapshot) uint64 { return s.UnreadableFields }},
	{"journald_corrupted_fields", func(s PromSnapshot) uint64 { return s.CorruptedFields }},
	{"journald_metrics_requests", func(s PromSnapshot) uint64 { return s.MetricsRequests }},
}

// RenderOpenMetrics renders snapshot as an OpenMetrics text document.
// The output is the frame body only; the caller wraps it with the
// 5-byte length-prefixed header (see package ipc, WriteMetricsFrame).
//
// Integers are written with strconv (a fixed-width base-10 routine, no
// floating-point formatting); only the _created timestamp carries a
// fractional part, fixed at exactly three digits (millisecond
// precision) to avoid exposing a higher-resolution clock to callers
// across the network (spec §4.C).
func RenderOpenMetrics(snapshot PromSnapshot, env Environment, names NameTable) []byte {
	if names == nil {
		names = NoNameTable{}
	}
	var b strings.Builder
	created := formatCreated(env.Created)

	for _, gc := range globalCounters {
		writeGlobalCounter(&b, gc.name, gc.get(snapshot), created)
	}

	writeMessageCounters(&b, "journald_messages_ingested", false, snapshot.MessagesIngested, created, names)
	writeMessageCounters(&b, "journald_messages_ingested_bytes", true, snapshot.MessagesIngested, created, names)

	b.WriteString("# EOF\n")
	return []byte(b.String())
}

func writeGlobalCounter(b *strings.Builder, name string, value uint64, created string) {
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteString("_created ")
	b.WriteString(created)
	b.WriteByte('\n')
	b.WriteString(name)
	b.WriteString("_total ")
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeMessageCounters(b *strings.Builder, name string, isBytes bool, snap ByteCountSnapshot, created string, names NameTable) {
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	if isBytes {
		b.WriteString("# UNIT ")
		b.WriteString(name)
		b.WriteString(" bytes\n")
	}

	if snap.IsEmpty() {
		b.WriteString(name)
		b.WriteString("_created ")
		b.WriteString(created)
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteString("_total 0\n")
		return
	}

	snap.EachWhile(func(e ByteCountEntry) bool {
		labels := messageLabels(e.Key, names)
		value := e.Lines
		if isBytes {
			value = e.Bytes
		}
		b.WriteString(name)
		b.WriteString("_created")
		b.WriteString(labels)
		b.WriteByte(' ')
		b.WriteString(created)
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteString("_total")
		b.WriteString(labels)
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(value, 10))
		b.WriteByte('\n')
		return true
	})
}

// messageLabels builds the {service="...",priority="...",severity="N",
// user="...",group="..."} label set for one keyed entry. Absent
// uid/gid/service, and any uid/gid that fails name resolution, render
// as the literal "?".
func messageLabels(k MessageKey, names NameTable) string {
	service := "?"
	if k.Service != nil {
		service = *k.Service
	}
	user := "?"
	if k.UID != nil {
		if name, ok := names.UserName(*k.UID); ok {
			user = name
		}
	}
	group := "?"
	if k.GID != nil {
		if name, ok := names.GroupName(*k.GID); ok {
			group = name
		}
	}

	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(`service="`)
	b.WriteString(service)
	b.WriteString(`",priority="`)
	b.WriteString(k.Priority.String())
	b.WriteString(`",severity="`)
	b.WriteString(strconv.Itoa(k.Priority.Severity()))
	b.WriteString(`",user="`)
	b.WriteString(user)
	b.WriteString(`",group="`)
	b.WriteString(group)
	b.WriteString(`"}`)
	return b.String()
}

// formatCreated renders t as seconds-since-epoch with exactly three
// fractional digits.
func formatCreated(t time.Time) string {
	nanos := t.UnixNano()
	sec := nanos / int64(time.Second)
	millis := (nanos % int64(time.Second)) / int64(time.Millisecond)
	if millis < 0 {
		millis = -millis
	}
	return strconv.FormatInt(sec, 10) + "." + padMillis(millis)
}

func padMillis(ms int64) string {
	s := strconv.FormatInt(ms, 10)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
