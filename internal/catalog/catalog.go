// Package catalog holds the operator's saved position offsets: a bounded,
// ordered list of NED vectors with an optional cursor marking the offset
// currently applied to live-offset and survey computations.
package catalog

import (
	"errors"
	"strconv"
	"strings"

	"surveypos/internal/ned"
)

const DefaultCapacity = 20

var (
	ErrCapacity     = errors.New("offset catalog is full")
	ErrEmpty        = errors.New("offset catalog is empty")
	ErrInvalidIndex = errors.New("offset index out of range")
)

// Catalog is not safe for concurrent use; the engine serializes access.
type Catalog struct {
	capacity int
	entries  []ned.Vector
	cursor   int // -1 means no offset selected
}

func New(capacity int) *Catalog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Catalog{
		capacity: capacity,
		entries:  make([]ned.Vector, 0, capacity),
		cursor:   -1,
	}
}

// Append stores a copy of the offset. The cursor is left unchanged.
func (c *Catalog) Append(v ned.Vector) error {
	if len(c.entries) >= c.capacity {
		return ErrCapacity
	}
	c.entries = append(c.entries, v)
	return nil
}

// Next advances the cursor by one, wrapping past the end. When nothing is
// selected yet, the first entry becomes selected.
func (c *Catalog) Next() error {
	if len(c.entries) == 0 {
		return ErrEmpty
	}
	if c.cursor < 0 {
		c.cursor = 0
		return nil
	}
	c.cursor = (c.cursor + 1) % len(c.entries)
	return nil
}

// Prev moves the cursor back by one, wrapping below zero. When nothing is
// selected yet, the last entry becomes selected.
func (c *Catalog) Prev() error {
	if len(c.entries) == 0 {
		return ErrEmpty
	}
	if c.cursor < 0 {
		c.cursor = len(c.entries) - 1
		return nil
	}
	c.cursor = (c.cursor + len(c.entries) - 1) % len(c.entries)
	return nil
}

func (c *Catalog) Select(index int) error {
	if index < 0 || index >= len(c.entries) {
		return ErrInvalidIndex
	}
	c.cursor = index
	return nil
}

// ImportBulk parses newline-separated "N,E,D" records and appends each valid
// one. Lines that are empty after trimming are ignored; lines without exactly
// two commas or with non-numeric fields are skipped silently. Import stops
// once the catalog is full. Returns the number of offsets appended.
func (c *Catalog) ImportBulk(text string) int {
	added := 0
	for _, line := range strings.Split(text, "\n") {
		if len(c.entries) >= c.capacity {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Count(line, ",") != 2 {
			continue
		}
		parts := strings.Split(line, ",")
		var vals [3]float64
		ok := true
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = f
		}
		if !ok {
			continue
		}
		c.entries = append(c.entries, ned.Vector{N: vals[0], E: vals[1], D: vals[2]})
		added++
	}
	return added
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// CurrentIndex returns the cursor, or -1 when nothing is selected.
func (c *Catalog) CurrentIndex() int {
	return c.cursor
}

// Current returns the selected offset, if any.
func (c *Catalog) Current() (ned.Vector, bool) {
	if c.cursor < 0 || c.cursor >= len(c.entries) {
		return ned.Vector{}, false
	}
	return c.entries[c.cursor], true
}

// Entries returns a copy of the stored offsets.
func (c *Catalog) Entries() []ned.Vector {
	out := make([]ned.Vector, len(c.entries))
	copy(out, c.entries)
	return out
}
