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

// Package config parses the supervisor's command-line surface. The
// command-line parser itself is out of scope for the core (spec §1), but
// the fields it must populate are named in spec §6 "Environment": bind
// port, key directory path, optional TLS paths, optional monitor filter
// list. This package also carries the supplemental -cursor-backend flag
// (SPEC_FULL.md "Cursor persistence").
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"
)

// CursorBackend selects which CursorStore implementation the journal
// loop checkpoints through.
type CursorBackend string

const (
	CursorBackendMemory   CursorBackend = "memory"
	CursorBackendRedis    CursorBackend = "redis"
	CursorBackendPostgres CursorBackend = "postgres"
)

// Config holds the supervisor's parsed, validated command-line
// configuration.
type Config struct {
	// BindPort is the port the child's HTTP/TLS listener binds to.
	BindPort int
	// KeyDir is the directory of accepted credential files (spec §4.E).
	KeyDir string
	// TLSCertPath and TLSKeyPath are passed through to the child
	// unexamined; this core does not reconcile TLS material at runtime
	// (spec §1 Non-goals).
	TLSCertPath string
	TLSKeyPath  string
	// MonitorFilter holds the systemd units named by -monitor. Journal
	// ingestion does not consult it: every unit is ingested.
	MonitorFilter []string
	// ChildPath is the unprivileged child binary the spawn manager execs.
	ChildPath string
	// ChildUser and ChildGroup are the user/group table entries (external
	// collaborator per spec §1) the supervisor drops privileges to
	// before exec'ing the child.
	ChildUser  string
	ChildGroup string

	// CursorBackend selects the optional checkpoint store.
	CursorBackend CursorBackend
	RedisAddr     string
	PostgresDSN   string

	// DiagAddr, when non-empty, exposes supervisor-operational metrics
	// on a loopback promhttp endpoint distinct from the child-facing
	// OpenMetrics renderer (SPEC_FULL.md "DOMAIN STACK").
	DiagAddr string

	// WatchdogInterval holds the expected watchdog heartbeat interval.
	// Nothing checks the journal loop's fixed 1000-entry / per-wait-cycle
	// heartbeat cadence against it.
	WatchdogInterval time.Duration
}

// ValidatePort reports whether port is in the valid TCP bind range
// (spec §8 boundary behavior: 0 and 65536+ rejected, 1 and 65535
// accepted).
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("config: port %d out of range 1..=65535", port)
	}
	return nil
}

// Parse parses args (typically os.Args[1:]) into a validated Config.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("journal-exporter", flag.ContinueOnError)

	port := fs.Int("port", 9103, "port the child's HTTPS listener binds to")
	keyDir := fs.String("key-dir", "/etc/journald-exporter/keys", "directory of accepted credential files")
	tlsCert := fs.String("tls-cert", "", "TLS certificate path, passed through to the child")
	tlsKey := fs.String("tls-key", "", "TLS private key path, passed through to the child")
	monitor := fs.String("monitor", "", "comma-separated list of systemd units (recorded only; ingestion covers all units)")
	childPath := fs.String("child-path", "", "path to the unprivileged child binary")
	childUser := fs.String("child-user", "journald-exporter", "user the child process runs as")
	childGroup := fs.String("child-group", "journald-exporter", "group the child process runs as")
	cursorBackend := fs.String("cursor-backend", string(CursorBackendMemory), "journal cursor checkpoint backend: memory, redis, or postgres")
	redisAddr := fs.String("redis-addr", "127.0.0.1:6379", "redis address, used when -cursor-backend=redis")
	postgresDSN := fs.String("postgres-dsn", "", "postgres connection string, used when -cursor-backend=postgres")
	diagAddr := fs.String("diag-addr", "", "if non-empty, expose supervisor diagnostics on this loopback address (e.g. 127.0.0.1:9104)")
	watchdogInterval := fs.Duration("watchdog-interval", 10*time.Second, "expected systemd watchdog interval (recorded only; not checked)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := ValidatePort(*port); err != nil {
		return Config{}, err
	}
	if *keyDir == "" {
		return Config{}, fmt.Errorf("config: -key-dir must not be empty")
	}

	backend := CursorBackend(*cursorBackend)
	switch backend {
	case CursorBackendMemory, CursorBackendRedis, CursorBackendPostgres:
	default:
		return Config{}, fmt.Errorf("config: unknown -cursor-backend %q", *cursorBackend)
	}
	if backend == CursorBackendPostgres && *postgresDSN == "" {
		return Config{}, fmt.Errorf("config: -cursor-backend=postgres requires -postgres-dsn")
	}

	var filter []string
	if *monitor != "" {
		for _, unit := range strings.Split(*monitor, ",") {
			unit = strings.TrimSpace(unit)
			if unit != "" {
				filter = append(filter, unit)
			}
		}
	}

	return Config{
		BindPort:         *port,
		KeyDir:           *keyDir,
		TLSCertPath:      *tlsCert,
		TLSKeyPath:       *tlsKey,
		MonitorFilter:    filter,
		ChildPath:        *childPath,
		ChildUser:        *childUser,
		ChildGroup:       *childGroup,
		CursorBackend:    backend,
		RedisAddr:        *redisAddr,
		PostgresDSN:      *postgresDSN,
		DiagAddr:         *diagAddr,
		WatchdogInterval: *watchdogInterval,
	}, nil
}
