// Package hosts pulls hosts-mapping lines for the translate endpoints out of
// the probe's console output.
//
// The probe prints a block that opens with the translate.googleapis.com line
// and closes with translate-pa.googleapis.com. Lines in between that name a
// translate.* host are kept verbatim, in order, and the address of the last
// one seen becomes the best address.
package hosts

import (
	"strings"

	"github.com/lucky845/gtipsync/internal/model"
)

const (
	StartMarker = "translate.googleapis.com"
	EntryMarker = " translate."
	EndMarker   = "translate-pa.googleapis.com"
)

type state int

const (
	idle state = iota
	collecting
)

// Collector is a line-at-a-time state machine. The zero value is ready to use.
type Collector struct {
	state   state
	entries []model.HostEntry
	best    string
}

// Feed consumes one output line (without its terminator).
func (c *Collector) Feed(line string) {
	if c.state == idle {
		if !strings.Contains(line, StartMarker) {
			return
		}
		c.state = collecting
		c.entries = c.entries[:0]
	}

	switch {
	case strings.Contains(line, EndMarker):
		c.add(line)
		c.state = idle
	case strings.Contains(line, EntryMarker):
		c.add(line)
	}
}

func (c *Collector) add(line string) {
	addr := firstToken(line)
	c.entries = append(c.entries, model.HostEntry{Address: addr, RawLine: line})
	c.best = addr
}

// Collecting reports whether a block is open.
func (c *Collector) Collecting() bool { return c.state == collecting }

// BestAddress is the address of the most recently collected entry.
func (c *Collector) BestAddress() string { return c.best }

// Result snapshots the collected entries.
func (c *Collector) Result() model.ScanResult {
	return model.ScanResult{
		Outcome:     model.OutcomeCompleted,
		Entries:     append([]model.HostEntry(nil), c.entries...),
		BestAddress: c.best,
	}
}

// Lines returns the raw collected lines.
func (c *Collector) Lines() []string {
	r := c.Result()
	return r.Lines()
}

// Parse runs a full transcript through a fresh Collector.
func Parse(lines []string) model.ScanResult {
	var c Collector
	for _, l := range lines {
		c.Feed(l)
	}
	return c.Result()
}

func firstToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
