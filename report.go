package main

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/sirupsen/logrus"
)

// Collision is a rename that was refused because its target was taken.
type Collision struct {
	Axis     Axis
	From, To Coord
}

// LevelPrune describes a deleted level.
type LevelPrune struct {
	Z     int
	Tiles int
	Bytes int64
	Err   *FSError
}

// LevelReport is the outcome of shifting one level.
type LevelReport struct {
	Z        int
	Offset   LevelOffset
	Centered bool
	// Resumed is set when an interrupted run of the level was completed first.
	Resumed bool

	ColumnsMoved int
	TilesMoved   int
	Recovered    int

	Collisions []Collision
	Resolved   []Collision
	Errors     []*FSError
}

// Report is the result of one Shifter run.
type Report struct {
	RunID  string
	Root   string
	BaseZ  int
	Shift  Shift
	DryRun bool

	Pruned []LevelPrune
	Levels []LevelReport
	// Skipped are level directories naming a level that another directory
	// already holds, such as "02" next to "2".
	Skipped []string
}

// Deleted returns the levels that were removed.
func (r *Report) Deleted() []int {
	var zs []int
	for _, p := range r.Pruned {
		if p.Err == nil {
			zs = append(zs, p.Z)
		}
	}
	return zs
}

// Processed returns the levels that were shifted.
func (r *Report) Processed() []int {
	zs := make([]int, 0, len(r.Levels))
	for _, l := range r.Levels {
		zs = append(zs, l.Z)
	}
	return zs
}

// Level returns the report of level z.
func (r *Report) Level(z int) (LevelReport, bool) {
	for _, l := range r.Levels {
		if l.Z == z {
			return l, true
		}
	}
	return LevelReport{}, false
}

// Collisions returns every refused rename of the run.
func (r *Report) Collisions() []Collision {
	var cs []Collision
	for _, l := range r.Levels {
		cs = append(cs, l.Collisions...)
	}
	return cs
}

func (r *Report) sort() {
	sort.Slice(r.Pruned, func(i, j int) bool { return r.Pruned[i].Z < r.Pruned[j].Z })
	sort.Slice(r.Levels, func(i, j int) bool { return r.Levels[i].Z < r.Levels[j].Z })
}

// WriteSummary renders the report as a table.
func (r *Report) WriteSummary(w io.Writer) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "run %s%s: %s, base z %d, shift %s\n", r.RunID, mode, r.Root, r.BaseZ, r.Shift)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"z", "action", "dx", "dy", "columns", "tiles", "collisions", "reordered", "errors"})
	for _, p := range r.Pruned {
		action := "deleted"
		errs := 0
		if p.Err != nil {
			action = "delete failed"
			errs = 1
		}
		t.AppendRow(table.Row{p.Z, action, "", "", "", humanize.Comma(int64(p.Tiles)) + " (" + humanize.Bytes(uint64(p.Bytes)) + ")", "", "", errs})
	}
	for _, l := range r.Levels {
		action := "shifted"
		switch {
		case l.Resumed:
			action = "resumed, shifted"
		case l.Centered:
			action = "shifted (already centered)"
		}
		t.AppendRow(table.Row{
			l.Z, action, l.Offset.DX, l.Offset.DY,
			humanize.Comma(int64(l.ColumnsMoved)),
			humanize.Comma(int64(l.TilesMoved)),
			len(l.Collisions), len(l.Resolved), len(l.Errors),
		})
	}
	t.Render()
	for _, name := range r.Skipped {
		fmt.Fprintf(w, "skipped %s: duplicate level directory\n", name)
	}
	for _, c := range r.Collisions() {
		fmt.Fprintf(w, "collision %s: %s -> %s skipped\n", c.Axis, c.From, c.To)
	}
}

// EventKind classifies what the Shifter reports while it works.
type EventKind int

const (
	EventPruned EventKind = iota
	EventLevelStart
	EventMoved
	EventCollision
	EventResolved
	EventOutOfGrid
	EventRecovered
	EventFSError
	EventLevelDone
	EventDuplicate
	EventResumed
)

var eventKindNames = map[EventKind]string{
	EventPruned:     "pruned",
	EventLevelStart: "level",
	EventMoved:      "moved",
	EventCollision:  "collision",
	EventResolved:   "resolved",
	EventOutOfGrid:  "out of grid",
	EventRecovered:  "recovered",
	EventFSError:    "fs error",
	EventLevelDone:  "level done",
	EventDuplicate:  "duplicate",
	EventResumed:    "resumed",
}

func (k EventKind) String() string {
	return eventKindNames[k]
}

// Event is one observation of a run.
type Event struct {
	Kind   EventKind
	Axis   Axis
	From   Coord
	To     Coord
	Offset LevelOffset
	Count  int
	Name   string
	Err    error
}

// Sink receives events. Events of different levels may arrive concurrently.
type Sink interface {
	Event(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Event(e Event) { f(e) }

type discardSink struct{}

func (discardSink) Event(Event) {}

// LogSink writes events to a logrus logger.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Event(e Event) {
	switch e.Kind {
	case EventPruned:
		s.Log.Infof("删除层级 z=%d, %d tiles", e.From.Z, e.Count)
	case EventLevelStart:
		s.Log.Infof("level %d: offset x %+d, y %+d", e.Offset.Z, e.Offset.DX, e.Offset.DY)
	case EventMoved:
		s.Log.Debugf("move %s %s -> %s", e.Axis, e.From, e.To)
	case EventCollision:
		s.Log.Warnf("conflict: %s %s -> %s, target exists, skipped", e.Axis, e.From, e.To)
	case EventResolved:
		s.Log.Infof("ordering resolved %s %s -> %s, ascending rename would have skipped it", e.Axis, e.From, e.To)
	case EventOutOfGrid:
		s.Log.Warnf("%s %s lies outside the level grid", e.Axis, e.From)
	case EventRecovered:
		s.Log.Infof("level %d: recovered %d entries left by an interrupted run", e.From.Z, e.Count)
	case EventFSError:
		s.Log.Errorf("level %d: %v", e.From.Z, e.Err)
	case EventDuplicate:
		s.Log.Warnf("level directory %s duplicates level %d, skipped", e.Name, e.From.Z)
	case EventResumed:
		s.Log.Infof("level %d: finishing offset x %+d, y %+d of interrupted run %s", e.From.Z, e.Offset.DX, e.Offset.DY, e.Name)
	case EventLevelDone:
		s.Log.Infof("level %d finished, %d entries moved", e.Offset.Z, e.Count)
	}
}

// CollectSink keeps every event in memory.
type CollectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *CollectSink) Event(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns the events of the given kind, or all of them when no kind is given.
func (s *CollectSink) Events(kinds ...EventKind) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(kinds) == 0 {
		return append([]Event(nil), s.events...)
	}
	var out []Event
	for _, e := range s.events {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
