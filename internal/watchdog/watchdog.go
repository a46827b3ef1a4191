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

// Package watchdog sends heartbeat notifications to the process
// supervisor (systemd's WATCHDOG= protocol). This is an external
// collaborator per spec §1; the core only depends on the small Notifier
// interface below.
package watchdog

import (
	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends a single watchdog heartbeat.
type Notifier interface {
	Notify() error
}

// SystemdNotifier sends sd_notify WATCHDOG=1 heartbeats via the
// go-systemd daemon package, the real binding used across the example
// corpus's systemd-adjacent services.
type SystemdNotifier struct{}

// Notify sends one WATCHDOG=1 heartbeat. It is a no-op (returns nil)
// when NOTIFY_SOCKET is unset, e.g. when not running under systemd.
func (SystemdNotifier) Notify() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	return err
}

// NoopNotifier discards every heartbeat; used in tests and in
// environments without a supervising systemd.
type NoopNotifier struct{}

func (NoopNotifier) Notify() error { return nil }
