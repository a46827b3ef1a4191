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

package spawn

import (
	"errors"
	"io"
	"os"
	"time"

	"journalexporter/internal/credential"
	"journalexporter/internal/ipc"
	"journalexporter/internal/metrics"
)

// readPollTimeout bounds each read of the child's stdout pipe so the
// terminate flag gets polled at least this often, mirroring the
// journal loop's waitTimeout (spec §5 "read on the child pipe is
// blocking but the caller returns to poll the terminate flag").
const readPollTimeout = 1 * time.Second

// Terminated is the minimal polling surface RunGeneration needs;
// satisfied by (*supervisor.Terminate).Terminated.
type Terminated func() bool

// Session is the parent-IPC message loop: it decodes opcodes the child
// sends on its stdout and writes back metrics/key-set frames on the
// child's stdin.
type Session struct {
	*Manager

	State *metrics.PromState
	Keys  *credential.SharedKeySet
	Env   metrics.Environment
	Names metrics.NameTable
}

// RunGeneration writes the parent's 4-byte IPC version header once, then
// services one child generation's stdout until it closes, errors, or
// terminate is tripped (spec §6: "the parent must send its header before
// any response frame"). A nil return means the child closed its end
// normally (EOF) or termination was requested; any other error is the
// pipe failure. Run only logs that error: the ChildOutcome it feeds into
// the next UpdateSpawn comes from waiting on the child process.
func (s *Session) RunGeneration(stdout io.ReadCloser, terminate Terminated) error {
	if _, err := s.ChildStdin.Write(ipc.VersionBytes()); err != nil {
		s.Logger.Printf("Writing IPC version header to child failed: %v", err)
	}

	buf := make([]byte, 4096)
	file, hasDeadline := stdout.(*os.File)

	for {
		if terminate() {
			return nil
		}

		if hasDeadline {
			file.SetReadDeadline(time.Now().Add(readPollTimeout))
		}

		n, err := stdout.Read(buf)
		if n > 0 {
			s.handleBytes(buf[:n])
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.ChildStdin.Clear()
			return err
		}
	}
}

func (s *Session) handleBytes(buf []byte) {
	s.DecoderMu.Lock()
	s.Decoder.ReadBytes(buf)
	req := s.Decoder.TakeRequest()
	s.DecoderMu.Unlock()

	if req.Tracked > 0 {
		s.State.AddRequests(req.Tracked)
	}

	var response []byte
	if req.Metrics {
		body := metrics.RenderOpenMetrics(s.State.Snapshot(), s.Env, s.Names)
		response = append(response, ipc.WriteMetricsFrame(body)...)
	}
	if req.Keys {
		response = append(response, ipc.WriteKeySetFrame(hexKeys(s.Keys.Load()))...)
	}
	if len(response) == 0 {
		return
	}
	if _, err := s.ChildStdin.Write(response); err != nil {
		s.Logger.Printf("Writing IPC response to child failed: %v", err)
	}
}

func hexKeys(ks credential.KeySet) [][]byte {
	keys := ks.Keys()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k.Hex())
	}
	return out
}

// isTimeout reports whether err is a deadline-exceeded read error, the
// Go equivalent of the original's EINTR/EAGAIN-triggered terminate poll.
func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
