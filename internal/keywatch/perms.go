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

package keywatch

import (
	"os"

	"golang.org/x/sys/unix"
)

// Group/other permission bit masks, in the low 6 bits of a standard
// Unix mode (the same layout os.FileMode exposes).
const (
	otherX os.FileMode = 0o001
	otherW os.FileMode = 0o002
	otherR os.FileMode = 0o004
	groupX os.FileMode = 0o010
	groupW os.FileMode = 0o020
	groupR os.FileMode = 0o040
)

// permsAreInsecure reports whether mode has any group or other bit set.
func permsAreInsecure(mode os.FileMode) bool {
	return mode&(groupR|groupW|groupX|otherR|otherW|otherX) != 0
}

// writeBitsAreInsecure reports whether mode is group- or world-writable,
// the narrower check applied to the key directory itself (spec §4.E:
// "If group-writable or world-writable it returns an error").
func writeBitsAreInsecure(mode os.FileMode) bool {
	return mode&(groupW|otherW) != 0
}

// groupPhrases and otherPhrases map a nonzero (R,W,X) bit triple, scaled down to
// 1..7, to its human-readable phrase. There are exactly seven nonzero
// 3-bit combinations, so with a group variant and an other variant this
// is the closed set of 14 phrases spec §4.E calls for.
var groupPhrases = [8]string{
	0: "",
	1: "group execute permission is set",
	2: "group write permission is set",
	3: "group write and execute permissions are set",
	4: "group read permission is set",
	5: "group read and execute permissions are set",
	6: "group read and write permissions are set",
	7: "group read, write, and execute permissions are set",
}

var otherPhrases = [8]string{
	0: "",
	1: "other (world) execute permission is set",
	2: "other (world) write permission is set",
	3: "other (world) write and execute permissions are set",
	4: "other (world) read permission is set",
	5: "other (world) read and execute permissions are set",
	6: "other (world) read and write permissions are set",
	7: "other (world) read, write, and execute permissions are set",
}

// insecureMessage describes which group/other bits are set on mode,
// preferring to name the group violation first when both are present
// (group permissions are the more common accidental misconfiguration:
// a file created with a restrictive umask but a shared group).
func insecureMessage(mode os.FileMode) string {
	groupBits := (mode >> 3) & 0o7
	otherBits := mode & 0o7
	if groupBits != 0 {
		return groupPhrases[groupBits]
	}
	if otherBits != 0 {
		return otherPhrases[otherBits]
	}
	return ""
}

// ownedByCaller reports whether path's owning uid matches the running
// process's effective uid, using unix.Stat directly rather than
// os.Stat's FileInfo (which doesn't expose ownership on its own). Mode
// bits alone can't catch a key file merely chown'd to another account
// with tight permissions; spec §4.E step 1 requires each key file be
// owned by the effective UID, so a mismatch here is rejected exactly
// like an insecure mode bit.
func ownedByCaller(path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	return st.Uid == uint32(os.Geteuid()), nil
}
