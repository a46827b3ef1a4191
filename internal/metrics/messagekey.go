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

// MessageKey locates one counter bucket: the priority (used by the
// caller as the shard selector) plus the uid/gid/service tuple that
// distinguishes buckets within a priority. The zero value has
// Priority == Emergency and every optional field absent — that is
// precisely the "malformed priority" default the journal loop relies on
// (see ParsePriority's doc comment).
//
// Ordering is lexicographic in field declaration order — priority, uid,
// gid, service — with "absent" sorting before any present value,
// matching spec §3's MessageKey ordering rule and the original
// implementation's derived Ord over Option<T> fields.
type MessageKey struct {
	Priority Priority
	UID      *uint32
	GID      *uint32
	Service  *string
}

// Less reports whether k sorts before other.
func (k MessageKey) Less(other MessageKey) bool {
	if k.Priority != other.Priority {
		return k.Priority < other.Priority
	}
	if c := compareOptionalUint32(k.UID, other.UID); c != 0 {
		return c < 0
	}
	if c := compareOptionalUint32(k.GID, other.GID); c != 0 {
		return c < 0
	}
	return compareOptionalString(k.Service, other.Service) < 0
}

// compareOptionalUint32 orders absent before present, then by value.
func compareOptionalUint32(a, b *uint32) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

// compareOptionalString orders absent before present, then
// lexicographically.
func compareOptionalString(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

// compositeKey is the comparable (hashable) projection of a MessageKey
// used as a Go map key within a single priority shard — priority itself
// is excluded since it already selects the shard.
type compositeKey struct {
	hasUID     bool
	uid        uint32
	hasGID     bool
	gid        uint32
	hasService bool
	service    string
}

func toCompositeKey(k MessageKey) compositeKey {
	var ck compositeKey
	if k.UID != nil {
		ck.hasUID = true
		ck.uid = *k.UID
	}
	if k.GID != nil {
		ck.hasGID = true
		ck.gid = *k.GID
	}
	if k.Service != nil {
		ck.hasService = true
		ck.service = *k.Service
	}
	return ck
}

func (ck compositeKey) toMessageKey(p Priority) MessageKey {
	k := MessageKey{Priority: p}
	if ck.hasUID {
		uid := ck.uid
		k.UID = &uid
	}
	if ck.hasGID {
		gid := ck.gid
		k.GID = &gid
	}
	if ck.hasService {
		service := ck.service
		k.Service = &service
	}
	return k
}
