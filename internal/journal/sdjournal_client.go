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
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

// SDJournalClient adapts github.com/coreos/go-systemd/v22/sdjournal to
// the Client interface. This is the production binding; tests exercise
// Loop against the in-memory fake instead.
type SDJournalClient struct {
	j *sdjournal.Journal
}

// OpenSDJournal opens the local system journal.
func OpenSDJournal() (Client, error) {
	j, err := sdjournal.NewJournal()
	if err != nil {
		return nil, fmt.Errorf("journal: opening sdjournal: %w", err)
	}
	return &SDJournalClient{j: j}, nil
}

func (c *SDJournalClient) SetDataThreshold(bytes uint64) error {
	return c.j.SetDataThresholdValue(bytes)
}

func (c *SDJournalClient) SeekCursor(cursor string) error {
	if err := c.j.SeekCursor(cursor); err != nil {
		return err
	}
	// SeekCursor positions the iterator one entry before the target so
	// the following Next() returns the entry at cursor itself again;
	// advance past it to avoid reprocessing.
	_, err := c.j.Next()
	return err
}

func (c *SDJournalClient) SeekRealtime(t time.Time) error {
	return c.j.SeekRealtime(t)
}

func (c *SDJournalClient) Wait(timeout time.Duration) (bool, error) {
	ret, err := c.j.Wait(timeout)
	if err != nil {
		return false, err
	}
	switch ret {
	case sdjournal.SD_JOURNAL_NOP:
		return false, nil
	default:
		return true, nil
	}
}

func (c *SDJournalClient) Next() (bool, error) {
	n, err := c.j.Next()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *SDJournalClient) Cursor() (string, error) {
	return c.j.GetCursor()
}

func (c *SDJournalClient) GetData(field string) (string, error) {
	v, err := c.j.GetDataValue(field)
	if err != nil {
		return "", classifySDJournalError(err)
	}
	return v, nil
}

func (c *SDJournalClient) Close() error {
	return c.j.Close()
}

// classifySDJournalError narrows the go-systemd error surface (which
// mixes plain fmt.Errorf wrapping with underlying errno values) down to
// the syscall.Errno values ClassifyFieldError and IsRecoverable expect.
// sdjournal.ErrNoData (the library's "field absent" sentinel) maps to
// ENOENT, matching the original journald-exporter's own treatment of
// absent fields.
func classifySDJournalError(err error) error {
	if err == sdjournal.ErrNoData {
		return syscall.ENOENT
	}
	return err
}
