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

package journal

import (
	"fmt"
	"log"
	"strconv"

	"journalexporter/internal/metrics"
)

// Field names read from each journal entry.
const (
	fieldUnit     = "_SYSTEMD_UNIT"
	fieldPriority = "PRIORITY"
	fieldUID      = "_UID"
	fieldGID      = "_GID"
	fieldMessage  = "MESSAGE"
)

// extractedEntry is everything pulled out of one journal entry.
type extractedEntry struct {
	key     metrics.MessageKey
	message string
}

// extractEntry reads the five fields of the current journal entry,
// applies spec §4.D's per-field error classification, and bumps the
// appropriate counters on st. A returned error is always fatal: the
// three recognized per-field errno classes never reach here as errors,
// only as the outcomes already folded into the returned key.
func extractEntry(c Client, st *metrics.PromState, logger *log.Logger) (extractedEntry, error) {
	var key metrics.MessageKey

	service, err := readMetadataField(c, st, logger, fieldUnit)
	if err != nil {
		return extractedEntry{}, err
	}
	if service != "" {
		name, outcome := metrics.ParseServiceName(service)
		switch outcome {
		case metrics.ServiceOK:
			key.Service = &name
		case metrics.ServiceMissingField:
			// nothing to attach
		case metrics.ServiceInvalid, metrics.ServiceTooLong:
			st.AddUnreadableField()
			logger.Printf("Unreadable _SYSTEMD_UNIT field: %s", metrics.Preview(service, 32))
		}
	}

	priorityRaw, err := readMetadataField(c, st, logger, fieldPriority)
	if err != nil {
		return extractedEntry{}, err
	}
	switch {
	case priorityRaw == "":
		key.Priority = metrics.Debug
	default:
		if p, ok := metrics.ParsePriority(priorityRaw); ok {
			key.Priority = p
		} else {
			// Malformed: key.Priority stays at its zero value,
			// Emergency. Deliberate per spec §4.D/§9 — parse failures
			// must be loud, not quietly folded into Debug.
			st.AddUnreadableField()
			logger.Printf("Malformed PRIORITY field: %s", metrics.Preview(priorityRaw, 8))
		}
	}

	uidRaw, err := readMetadataField(c, st, logger, fieldUID)
	if err != nil {
		return extractedEntry{}, err
	}
	if uidRaw != "" {
		if v, perr := strconv.ParseUint(uidRaw, 10, 32); perr == nil {
			uid := uint32(v)
			key.UID = &uid
		} else {
			st.AddUnreadableField()
			logger.Printf("Malformed _UID field: %s", metrics.Preview(uidRaw, 16))
		}
	}

	gidRaw, err := readMetadataField(c, st, logger, fieldGID)
	if err != nil {
		return extractedEntry{}, err
	}
	if gidRaw != "" {
		if v, perr := strconv.ParseUint(gidRaw, 10, 32); perr == nil {
			gid := uint32(v)
			key.GID = &gid
		} else {
			st.AddUnreadableField()
			logger.Printf("Malformed _GID field: %s", metrics.Preview(gidRaw, 16))
		}
	}

	message, outcome, err := readRawField(c, fieldMessage)
	if err != nil {
		return extractedEntry{}, err
	}
	switch outcome {
	case FieldUnreadable:
		st.AddUnreadableField()
		message = ""
	case FieldCorrupted:
		st.AddCorruptedField()
		message = ""
	}

	return extractedEntry{key: key, message: message}, nil
}

// readMetadataField reads one of the four metadata fields and bumps the
// generic fields-ingested counter when the read actually produced a
// value. Missing fields return "" with no error and no counter bump.
func readMetadataField(c Client, st *metrics.PromState, logger *log.Logger, field string) (string, error) {
	value, outcome, err := readRawField(c, field)
	if err != nil {
		return "", err
	}
	switch outcome {
	case FieldOK:
		st.AddFieldIngested(uint64(len(value)))
		return value, nil
	case FieldUnreadable:
		st.AddUnreadableField()
		logger.Printf("Unreadable %s field (truncated)", field)
		return "", nil
	case FieldCorrupted:
		st.AddCorruptedField()
		logger.Printf("Corrupted %s field", field)
		return "", nil
	default: // FieldMissing
		return "", nil
	}
}

// readRawField fetches one field and classifies the result without
// touching counters, so callers with different accounting needs (the
// metadata fields vs. MESSAGE) can each apply their own policy.
func readRawField(c Client, field string) (string, FieldOutcome, error) {
	value, err := c.GetData(field)
	outcome, fatal := ClassifyFieldError(err)
	if fatal != nil {
		return "", FieldOK, fmt.Errorf("journal: reading field %s: %w", field, fatal)
	}
	if outcome != FieldOK {
		return "", outcome, nil
	}
	return value, FieldOK, nil
}
