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

// Package keywatch reads the accepted-key directory and watches it for
// changes, rejecting any file or directory whose permissions let anyone
// outside its owner read or modify a credential (spec §4.E).
package keywatch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"journalexporter/internal/credential"
)

// atomicDebounce coalesces the burst of events a single atomic file
// replace (write-to-temp, rename-over) produces into one re-read.
const atomicDebounce = 100 * time.Millisecond

// terminateTimeout is the terminate-flag polling bound. Run does not use
// it: Run selects on Terminate.Done and returns as soon as termination is
// signalled.
const terminateTimeout = 1 * time.Second

// ReadKeySet scans dir and returns the set of accepted keys it contains.
// The directory itself must not be group- or world-writable; each
// regular file in it must not be group- or world-accessible at all, and
// its trimmed contents must parse as a credential.Key. A directory
// exceeding credential.MaxKeySetLen entries is truncated, in sorted
// filename order, with the excess logged rather than rejected outright —
// matching the original's preference for degraded-but-running service
// over an outage from a single operator error.
func ReadKeySet(dir string, logger *log.Logger) (credential.KeySet, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return credential.Empty(), fmt.Errorf("keywatch: stat key directory: %w", err)
	}
	if !info.IsDir() {
		return credential.Empty(), fmt.Errorf("keywatch: %s is not a directory", dir)
	}
	if writeBitsAreInsecure(info.Mode().Perm()) {
		return credential.Empty(), fmt.Errorf("keywatch: key directory %s is insecure: %s", dir, insecureMessage(info.Mode().Perm()))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return credential.Empty(), fmt.Errorf("keywatch: reading key directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) > credential.MaxKeySetLen {
		logger.Printf("keywatch: %d key files found, truncating to %d", len(names), credential.MaxKeySetLen)
		names = names[:credential.MaxKeySetLen]
	}

	keys := make([]credential.Key, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		fi, err := os.Stat(path)
		if err != nil {
			logger.Printf("keywatch: skipping %s: %v", path, err)
			continue
		}
		if msg := insecureMessage(fi.Mode().Perm()); msg != "" {
			logger.Printf("keywatch: skipping %s: insecure permissions: %s", path, msg)
			continue
		}
		if owned, err := ownedByCaller(path); err != nil || !owned {
			logger.Printf("keywatch: skipping %s: not owned by this process's effective user", path)
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Printf("keywatch: skipping %s: %v", path, err)
			continue
		}
		key, err := credential.FromHex(strings.TrimSpace(string(raw)))
		if err != nil {
			logger.Printf("keywatch: skipping %s: %v", path, err)
			continue
		}
		keys = append(keys, key)
	}

	return credential.New(keys), nil
}

// Terminated matches supervisor.Terminate's polling surface without
// importing that package.
type Terminated interface {
	Terminated() bool
	Done() <-chan struct{}
}

// Watcher wraps an fsnotify watcher over a single key directory,
// collapsing bursts of filesystem events into a single debounced
// re-read.
type Watcher struct {
	Dir    string
	Logger *log.Logger

	// OnUpdate is called with every freshly read key set, including the
	// initial read before any filesystem event has occurred.
	OnUpdate func(credential.KeySet)

	Terminate Terminated
}

// Run performs the initial read, then blocks watching Dir for changes
// until Terminate reports termination. Each burst of fsnotify events
// restarts a debounce timer; the directory is only re-read once the
// timer fires without being reset, so a rename-based atomic replace (a
// Remove followed immediately by a Create) produces one re-read instead
// of two.
func (w *Watcher) Run() error {
	initial, err := ReadKeySet(w.Dir, w.Logger)
	if err != nil {
		return err
	}
	w.OnUpdate(initial)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("keywatch: creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Dir); err != nil {
		return fmt.Errorf("keywatch: watching %s: %w", w.Dir, err)
	}

	var debounce *time.Timer
	debounceC := make(<-chan time.Time)

	for {
		select {
		case <-w.Terminate.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.Logger.Printf("keywatch: %s", ev)
			if debounce == nil {
				debounce = time.NewTimer(atomicDebounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(atomicDebounce)
			}
			debounceC = debounce.C
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Printf("keywatch: watch error: %v", werr)
		case <-debounceC:
			debounceC = make(<-chan time.Time)
			ks, err := ReadKeySet(w.Dir, w.Logger)
			if err != nil {
				w.Logger.Printf("keywatch: re-read failed, keeping previous key set: %v", err)
				continue
			}
			w.OnUpdate(ks)
		}
	}
}
