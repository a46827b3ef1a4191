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

// Package diag exposes supervisor-operational metrics — respawn count,
// fail-counter trips, journal fault counts — through a Prometheus
// /metrics endpoint on a separate loopback port. This is distinct from
// the hand-rolled OpenMetrics renderer in package metrics that spec.md
// §4.C mandates byte-for-byte for the child-facing exposition;
// everything here is additive supervisor self-observability
// (SPEC_FULL.md "DOMAIN STACK").
package diag

import (
	"context"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	respawnsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "journald_exporter_supervisor_respawns_total",
		Help: "Total number of times the supervisor spawned a new child generation.",
	})
	failCounterTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "journald_exporter_supervisor_failcounter_trips_total",
		Help: "Total number of times the fail-counter escalated to a fatal break.",
	})
	journalFaultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "journald_exporter_supervisor_journal_faults_total",
		Help: "Total number of recoverable journal I/O faults observed by the ingestion loop.",
	})
)

func init() {
	prometheus.MustRegister(respawnsTotal, failCounterTripsTotal, journalFaultsTotal)
}

// ObserveRespawn records one child respawn.
func ObserveRespawn() { respawnsTotal.Inc() }

// ObserveFailCounterTrip records one fail-counter escalation.
func ObserveFailCounterTrip() { failCounterTripsTotal.Inc() }

// ObserveJournalFault records one recoverable journal fault.
func ObserveJournalFault() { journalFaultsTotal.Inc() }

// Server serves the diagnostics /metrics endpoint on a loopback address.
type Server struct {
	httpServer *http.Server
	Addr       string
}

// Start begins serving promhttp.Handler() on addr in the background. A
// non-nil error means the listener itself could not be created; the
// caller decides whether that is fatal to the supervisor as a whole
// (it is not, by default — diagnostics are best-effort). The returned
// Server's Addr is the listener's actual bound address, which differs
// from addr when addr ends in ":0".
func Start(addr string) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("diag: listening on %s: %w", addr, err)
	}
	go httpServer.Serve(ln)
	return &Server{httpServer: httpServer, Addr: ln.Addr().String()}, nil
}

// Stop gracefully shuts the diagnostics server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// KeyCount pairs a message key's label-rendering with the line count
// observed for it, for the shutdown busiest-key summary below.
type KeyCount struct {
	Label string
	Lines uint64
}

// hashKey returns a 64-bit FNV-1a hash of label, reusing the teacher's
// deterministic-sampling idiom (telemetry/churn/prom_counters.go
// hashKey) as a short, stable identifier printed beside each label in
// the console summary.
func hashKey(label string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	return h.Sum64()
}

// PrintTopBusiestKeys prints an end-of-process console summary of the
// topN busiest message keys by ingested line count, in the teacher's
// yellow-banner PrintFinalMetrics style (core/persistence.go).
func PrintTopBusiestKeys(counts []KeyCount, topN int) {
	sort.Slice(counts, func(i, j int) bool { return counts[i].Lines > counts[j].Lines })
	if topN > 0 && len(counts) > topN {
		counts = counts[:topN]
	}

	yellow := "\x1b[33m"
	reset := "\x1b[0m"
	now := time.Now().Format(time.RFC3339)
	sep := strings.Repeat("-", 60)

	fmt.Printf("%s[%s] Busiest message keys\n", yellow, now)
	fmt.Println(sep)
	fmt.Printf("%-12s %-40s %10s\n", "Hash", "Label", "Lines")
	fmt.Println(sep)
	for _, c := range counts {
		fmt.Printf("%012x %-40s %10d\n", hashKey(c.Label)&0xffffffffffff, truncateLabel(c.Label, 40), c.Lines)
	}
	fmt.Println(sep + reset)
}

func truncateLabel(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
