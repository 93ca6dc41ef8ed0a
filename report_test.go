package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestWriteSummary(t *testing.T) {
	rep := &Report{
		RunID: "abc",
		Root:  "/tiles",
		BaseZ: 2,
		Shift: Shift{X: 1},
		Pruned: []LevelPrune{
			{Z: 0, Tiles: 1, Bytes: 2048},
			{Z: 1, Tiles: 4, Err: &FSError{Op: "remove", Path: "/tiles/1", Err: errors.New("denied")}},
		},
		Levels: []LevelReport{{
			Z:            2,
			Offset:       LevelOffset{Z: 2, DX: -1, DY: -2},
			ColumnsMoved: 3,
			TilesMoved:   1200,
			Collisions:   []Collision{{Axis: AxisX, From: Coord{Z: 2, X: 2}, To: Coord{Z: 2, X: 1}}},
		}},
	}
	var buf bytes.Buffer
	rep.WriteSummary(&buf)
	out := buf.String()

	assert.Contains(t, out, "run abc: /tiles, base z 2, shift 1 0")
	assert.Contains(t, out, "deleted")
	assert.Contains(t, out, "delete failed")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "collision x: 2/2/0 -> 2/1/0 skipped")
	assert.Equal(t, []int{0}, rep.Deleted())
}

func TestLogSinkLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s := LogSink{Log: logger}

	s.Event(Event{Kind: EventMoved, Axis: AxisY, From: Coord{Z: 1, X: 0, Y: 1}, To: Coord{Z: 1, X: 0, Y: 0}})
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	s.Event(Event{Kind: EventCollision, From: Coord{Z: 1, X: 1}, To: Coord{Z: 1}})
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	s.Event(Event{Kind: EventFSError, Err: errors.New("boom")})
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	s.Event(Event{Kind: EventResolved})
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Len(t, hook.Entries, 4)
}
