// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"go.osokin.dev/notifier/internal/atomicio"
)

// Persisted state between runs: the last-processed timestamp, and, for the
// queueing variant, the list of not-yet-posted items.

// Cursor persists the publication instant of the last successfully posted
// item as epoch milliseconds in a plain text file.
type Cursor struct {
	Path string
}

// Load reads the cursor. If the file doesn't exist yet, it returns the zero
// time and no error; the caller decides the first-run behavior.
func (c *Cursor) Load() (time.Time, error) {
	b, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing cursor file %s: %w", c.Path, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Save writes t to the cursor file atomically.
func (c *Cursor) Save(t time.Time) error {
	return atomicio.WriteFile(c.Path, []byte(strconv.FormatInt(t.UnixMilli(), 10)), 0o644)
}

// Queue persists items that have been fetched but not yet posted, as a JSON
// array.
type Queue struct {
	Path string
}

// Load reads the queued items. A missing file is an empty queue.
func (q *Queue) Load() ([]Item, error) {
	b, err := os.ReadFile(q.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("parsing queue file %s: %w", q.Path, err)
	}
	return items, nil
}

// Save writes the queued items atomically.
func (q *Queue) Save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return atomicio.WriteFile(q.Path, b, 0o644)
}

// Merge appends the fresh items that aren't already queued, matching by ID,
// and keeps the result ordered oldest first. Merging the same batch twice
// is a no-op.
func Merge(queued, fresh []Item) []Item {
	seen := make(map[string]bool, len(queued))
	out := make([]Item, 0, len(queued)+len(fresh))
	for _, it := range queued {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	for _, it := range fresh {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
