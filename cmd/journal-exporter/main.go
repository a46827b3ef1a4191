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

// Command journal-exporter is the privileged supervisor process: it
// wires the journal ingestion loop, the key-directory watcher, and the
// child spawn manager together (spec §4.G) and drives them until a
// terminating signal arrives, mirroring
// cmd/ratelimiter-api/main.go's flag-parse / start / signal-wait /
// graceful-shutdown shape.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"strconv"
	"sync"
	"syscall"
	"time"

	"journalexporter/internal/checkpoint"
	"journalexporter/internal/config"
	"journalexporter/internal/credential"
	"journalexporter/internal/diag"
	"journalexporter/internal/failcounter"
	"journalexporter/internal/ipc"
	"journalexporter/internal/journal"
	"journalexporter/internal/keywatch"
	"journalexporter/internal/metrics"
	"journalexporter/internal/nametable"
	"journalexporter/internal/spawn"
	"journalexporter/internal/supervisor"
	"journalexporter/internal/watchdog"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "journal-exporter: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Printf("journal-exporter: fatal: %v", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	term := supervisor.NewTerminate()

	state := metrics.NewPromState()
	keys := &credential.SharedKeySet{}
	decoder := ipc.NewDecoder()
	var decoderMu sync.Mutex
	childStdin := &spawn.ChildInput{}

	cursorStore, closeCursorStore, err := openCheckpointStore(cfg)
	if err != nil {
		return err
	}
	defer closeCursorStore()

	var diagServer *diag.Server
	if cfg.DiagAddr != "" {
		diagServer, err = diag.Start(cfg.DiagAddr)
		if err != nil {
			log.Printf("journal-exporter: diagnostics endpoint disabled: %v", err)
		} else {
			defer diagServer.Stop(context.Background())
		}
	}

	journalLogger := log.New(os.Stderr, "journal: ", log.LstdFlags)
	journalLoop := &journal.Loop{
		Open:       journal.OpenSDJournal,
		State:      state,
		Notify:     watchdogNotifier(),
		Terminated: term.Terminated,
		Logger:     journalLogger,
		Checkpoint: cursorStore,
		OnFault:    diag.ObserveJournalFault,
	}

	keywatchLogger := log.New(os.Stderr, "keywatch: ", log.LstdFlags)
	watcher := &keywatch.Watcher{
		Dir:    cfg.KeyDir,
		Logger: keywatchLogger,
		OnUpdate: func(ks credential.KeySet) {
			keys.Store(ks)
		},
		Terminate: term,
	}

	newCommand, err := childCommand(cfg)
	if err != nil {
		return err
	}

	spawnLogger := log.New(os.Stderr, "spawn: ", log.LstdFlags)
	manager := &spawn.Manager{
		NewCommand:        newCommand,
		FailCounter:       failcounter.New(),
		Decoder:           decoder,
		DecoderMu:         &decoderMu,
		ChildStdin:        childStdin,
		Logger:            spawnLogger,
		OnRespawn:         diag.ObserveRespawn,
		OnFailCounterTrip: diag.ObserveFailCounterTrip,
	}
	session := &spawn.Session{
		Manager: manager,
		State:   state,
		Keys:    keys,
		Env:     metrics.Environment{Created: time.Now()},
		Names:   nametable.New(),
	}

	boot := &supervisor.Bootstrap{
		Terminate:   term,
		Logger:      log.New(os.Stderr, "supervisor: ", log.LstdFlags),
		IPCTaskName: "parent-ipc",
		Tasks: []supervisor.Task{
			{Name: "journal", Run: journalLoop.Run},
			{Name: "keywatch", Run: watcher.Run},
			{Name: "parent-ipc", Run: func() error { return session.Run(term.Terminated) }},
		},
	}

	go waitForSignal(term)

	runErr := boot.Run()
	diag.PrintTopBusiestKeys(busiestKeys(state.Snapshot()), busiestKeysShown)
	return runErr
}

// busiestKeysShown bounds the shutdown busiest-key summary to a glanceable
// size.
const busiestKeysShown = 10

// busiestKeys flattens a snapshot's per-key table into the diag package's
// shutdown summary input.
func busiestKeys(snap metrics.PromSnapshot) []diag.KeyCount {
	var out []diag.KeyCount
	snap.MessagesIngested.EachWhile(func(e metrics.ByteCountEntry) bool {
		out = append(out, diag.KeyCount{Label: keyLabel(e.Key), Lines: e.Lines})
		return true
	})
	return out
}

// keyLabel renders a MessageKey the same "?"-for-absent way the
// OpenMetrics renderer does (internal/metrics/render.go messageLabels),
// but with numeric uid/gid instead of resolved user/group names.
func keyLabel(k metrics.MessageKey) string {
	service := "?"
	if k.Service != nil {
		service = *k.Service
	}
	uid := "?"
	if k.UID != nil {
		uid = strconv.FormatUint(uint64(*k.UID), 10)
	}
	gid := "?"
	if k.GID != nil {
		gid = strconv.FormatUint(uint64(*k.GID), 10)
	}
	return fmt.Sprintf("priority=%s service=%s uid=%s gid=%s", k.Priority, service, uid, gid)
}

// waitForSignal trips term on SIGINT/SIGTERM, giving every worker the
// same cooperative-shutdown path a directory-watch Drop or journal fault
// would (spec §5 "Cancellation / termination").
func waitForSignal(term *supervisor.Terminate) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		term.Trip()
	case <-term.Done():
	}
}

// childCommand returns the *exec.Cmd factory spawn.Manager calls once
// per generation. ChildUser/ChildGroup are resolved once here rather
// than on every spawn, matching spec §5's "dynamic config (child
// user/group, args, prom environment): set once at bootstrap, read
// afterwards." The child binary and its HTTP/TLS surface are external
// collaborators (spec §1); this only has to start it under the
// unprivileged identity with the configuration it needs to locate its
// listener and TLS material.
func childCommand(cfg config.Config) (func() *exec.Cmd, error) {
	cred, err := childCredential(cfg.ChildUser, cfg.ChildGroup)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-port", strconv.Itoa(cfg.BindPort),
	}
	if cfg.TLSCertPath != "" {
		args = append(args, "-tls-cert", cfg.TLSCertPath)
	}
	if cfg.TLSKeyPath != "" {
		args = append(args, "-tls-key", cfg.TLSKeyPath)
	}

	return func() *exec.Cmd {
		cmd := exec.Command(cfg.ChildPath, args...)
		cmd.Stderr = os.Stderr
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
		return cmd
	}, nil
}

// childCredential resolves the configured child user/group names to a
// syscall.Credential the exec'd child process drops to, so a compromise
// of the child's HTTP/TLS listener (spec §1's "unprivileged child") does
// not inherit the parent's privileges.
func childCredential(username, groupname string) (*syscall.Credential, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, fmt.Errorf("journal-exporter: resolving child user %q: %w", username, err)
	}
	g, err := user.LookupGroup(groupname)
	if err != nil {
		return nil, fmt.Errorf("journal-exporter: resolving child group %q: %w", groupname, err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("journal-exporter: parsing uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("journal-exporter: parsing gid %q: %w", g.Gid, err)
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}

// watchdogNotifier picks the systemd watchdog transport when running
// under a supervisor, falling back to a no-op otherwise (both satisfy
// journal.Notifier without this package needing to know which one is
// live).
func watchdogNotifier() watchdog.Notifier {
	if os.Getenv("NOTIFY_SOCKET") == "" {
		return watchdog.NoopNotifier{}
	}
	return watchdog.SystemdNotifier{}
}

// openCheckpointStore selects the configured cursor-checkpoint backend,
// returning a no-op close for the backends that own no closable
// resource.
func openCheckpointStore(cfg config.Config) (journal.CursorStore, func(), error) {
	switch cfg.CursorBackend {
	case config.CursorBackendRedis:
		store := checkpoint.NewRedisStore(cfg.RedisAddr)
		return store, func() { store.Close() }, nil
	case config.CursorBackendPostgres:
		store, err := checkpoint.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { store.Close() }, nil
	default:
		return checkpoint.Memory{}, func() {}, nil
	}
}
