package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// JournalName 记录层级平移进度, 位于瓦片根目录
const JournalName = ".mtp-journal"

// Journal records the progress of level shifts, one line per step:
//
//	begin  z dx dy runID       before the first rename of a level
//	commit z axis dir runID    every entry of dir is parked, renames to targets start
//	moved  z axis dir runID    dir is renumbered along axis
//	done   z dx dy runID       the level is finished
//
// dir is "-" for the column directory of a level and the column name for
// its tiles. Lines of the form "z dx dy runID" are read as done.
type Journal struct {
	fs      afero.Fs
	path    string
	mu      sync.Mutex
	levels  map[int]struct{}
	pending map[int]*LevelProgress
}

// LevelProgress is what an unfinished run of one level got through.
type LevelProgress struct {
	Offset    LevelOffset
	RunID     string
	committed map[string]bool
	moved     map[string]bool
}

// LevelDirKey is the journal key of a level's own directory.
const LevelDirKey = "-"

func progressKey(axis Axis, dir string) string {
	return axis.String() + " " + dir
}

// Committed reports whether renames to targets had started in dir.
func (p *LevelProgress) Committed(axis Axis, dir string) bool {
	return p.committed[progressKey(axis, dir)]
}

// Moved reports whether dir was renumbered completely.
func (p *LevelProgress) Moved(axis Axis, dir string) bool {
	return p.moved[progressKey(axis, dir)]
}

// OpenJournal reads the journal of the pyramid at root. A missing journal is
// an empty one.
func OpenJournal(fs afero.Fs, root string) (*Journal, error) {
	j := &Journal{
		fs:      fs,
		path:    filepath.Join(root, JournalName),
		levels:  make(map[int]struct{}),
		pending: make(map[int]*LevelProgress),
	}
	f, err := fs.Open(j.path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	defer f.Close()

	// 获取已完成记录
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		j.apply(strings.Fields(sc.Text()))
	}
	return j, errors.Wrap(sc.Err(), "read journal")
}

// apply folds one journal line into the state. Malformed lines are skipped.
func (j *Journal) apply(f []string) {
	if len(f) == 4 {
		f = append([]string{"done"}, f...)
	}
	if len(f) != 5 {
		return
	}
	z, err := strconv.Atoi(f[1])
	if err != nil {
		return
	}
	switch f[0] {
	case "begin", "done":
		dx, err1 := strconv.Atoi(f[2])
		dy, err2 := strconv.Atoi(f[3])
		if err1 != nil || err2 != nil {
			return
		}
		if f[0] == "done" {
			j.levels[z] = struct{}{}
			delete(j.pending, z)
			return
		}
		j.pending[z] = &LevelProgress{
			Offset:    LevelOffset{Z: z, DX: dx, DY: dy},
			RunID:     f[4],
			committed: make(map[string]bool),
			moved:     make(map[string]bool),
		}
	case "commit", "moved":
		p, ok := j.pending[z]
		if !ok {
			return
		}
		key := f[2] + " " + f[3]
		if f[0] == "commit" {
			p.committed[key] = true
		} else {
			p.moved[key] = true
		}
	}
}

// IsCentered reports whether level z was shifted by an earlier run.
func (j *Journal) IsCentered(z int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.levels[z]
	return ok
}

// Pending returns the progress of a shift of level z that never finished,
// or nil.
func (j *Journal) Pending(z int) *LevelProgress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pending[z]
}

// Begin records that level z is about to be shifted by off.
func (j *Journal) Begin(off LevelOffset, runID string) error {
	return j.write("begin", off.Z, strconv.Itoa(off.DX), strconv.Itoa(off.DY), runID)
}

// Commit records that the entries of dir are parked and start moving to
// their targets.
func (j *Journal) Commit(z int, axis Axis, dir, runID string) error {
	return j.write("commit", z, axis.String(), dir, runID)
}

// Moved records that dir is renumbered along axis.
func (j *Journal) Moved(z int, axis Axis, dir, runID string) error {
	return j.write("moved", z, axis.String(), dir, runID)
}

// Done records a finished level.
func (j *Journal) Done(off LevelOffset, runID string) error {
	return j.write("done", off.Z, strconv.Itoa(off.DX), strconv.Itoa(off.DY), runID)
}

func (j *Journal) write(op string, z int, a, b, runID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.fs.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "open journal")
	}
	fields := []string{op, strconv.Itoa(z), a, b, runID}
	if _, err := fmt.Fprintln(f, strings.Join(fields, " ")); err != nil {
		f.Close()
		return errors.Wrap(err, "write journal")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close journal")
	}
	j.apply(fields)
	return nil
}
