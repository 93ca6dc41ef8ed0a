package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/teris-io/shortid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// Shifter renumbers a z/x/y tile tree in place: it deletes the levels below
// the base level and moves every remaining column and tile by its level
// offset.
type Shifter struct {
	Fs       afero.Fs
	Format   string // tile file extension, without the dot
	Sink     Sink
	Workers  int  // levels shifted at the same time
	DryRun   bool // plan and report, touch nothing
	Progress bool
}

// Request names a pyramid and how to shift it.
type Request struct {
	Root  string
	BaseZ int
	Shift Shift
}

// NewShifter returns a Shifter for tiles of the given format on the local filesystem.
func NewShifter(format string) *Shifter {
	return &Shifter{
		Fs:      afero.NewOsFs(),
		Format:  format,
		Sink:    discardSink{},
		Workers: 1,
	}
}

// ShiftPyramid shifts the webp pyramid at root on the local filesystem.
func ShiftPyramid(root string, baseZ, shiftX, shiftY int) (*Report, error) {
	return NewShifter(WEBP).Shift(Request{
		Root:  root,
		BaseZ: baseZ,
		Shift: Shift{X: shiftX, Y: shiftY},
	})
}

func (s *Shifter) validate(req Request) error {
	if req.BaseZ < 0 {
		return configErrorf("base z %d is negative", req.BaseZ)
	}
	if req.BaseZ > ZoomMax {
		return configErrorf("base z %d is above %d", req.BaseZ, ZoomMax)
	}
	if !req.Shift.fits(req.BaseZ) {
		return configErrorf("shift %s overflows at zoom %d, limit is %d for base z %d", req.Shift, ZoomMax, MaxShift(req.BaseZ), req.BaseZ)
	}
	if s.Format == "" || strings.ContainsAny(s.Format, `./\`) {
		return configErrorf("tile format %q is not a file extension", s.Format)
	}
	if req.Root == "" {
		return configErrorf("no pyramid root")
	}
	fi, err := s.fsOrDefault().Stat(req.Root)
	if err != nil {
		return configErrorf("pyramid root %s: %v", req.Root, err)
	}
	if !fi.IsDir() {
		return configErrorf("pyramid root %s is not a directory", req.Root)
	}
	return nil
}

func (s *Shifter) fsOrDefault() afero.Fs {
	if s.Fs == nil {
		return afero.NewOsFs()
	}
	return s.Fs
}

func (s *Shifter) sinkOrDefault() Sink {
	if s.Sink == nil {
		return discardSink{}
	}
	return s.Sink
}


func (s *Shifter) workers() int {
	if s.Workers < 1 {
		return 1
	}
	return s.Workers
}

// run is the state shared by the levels of one Shift call.
type run struct {
	*Shifter
	fs      afero.Fs
	sink    Sink
	id      string
	req     Request
	journal *Journal

	barMu    sync.Mutex
	bar      *pb.ProgressBar // shared when several levels run at once
	barTotal int
	barOut   io.Writer
}

// Shift prunes and renumbers the pyramid. The report is returned even when
// some levels failed; their errors are combined into the returned error.
// Configuration errors are returned before anything is touched.
func (s *Shifter) Shift(req Request) (*Report, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	id, err := shortid.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "generate run id")
	}
	r := &run{Shifter: s, fs: s.fsOrDefault(), sink: s.sinkOrDefault(), id: id, req: req}

	r.journal, err = OpenJournal(r.fs, req.Root)
	if err != nil {
		return nil, err
	}
	levels, err := listDirs(r.fs, req.Root, false)
	if err != nil {
		return nil, err
	}

	rep := &Report{RunID: id, Root: req.Root, BaseZ: req.BaseZ, Shift: req.Shift, DryRun: s.DryRun}
	var keep []entry
	seen := make(map[int]bool)
	for _, e := range canonicalFirst(levels.entries) {
		if e.key < req.BaseZ {
			rep.Pruned = append(rep.Pruned, r.prune(e))
			continue
		}
		// "02" 与 "2" 是同一层级, 只处理一个
		if seen[e.key] {
			rep.Skipped = append(rep.Skipped, e.name)
			r.sink.Event(Event{Kind: EventDuplicate, From: Coord{Z: e.key}, Name: e.name})
			continue
		}
		seen[e.key] = true
		keep = append(keep, e)
	}

	// 各层级互不影响, 可以并行
	var (
		mu   sync.Mutex
		errs error
	)
	results := make([]LevelReport, len(keep))
	g := new(errgroup.Group)
	g.SetLimit(s.workers())
	for i, e := range keep {
		i, e := i, e
		g.Go(func() error {
			lr, err := r.shiftLevel(e)
			results[i] = lr
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "level %d", e.key))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if r.bar != nil {
		r.bar.FinishPrint("Shift finished ~")
	}

	rep.Levels = results
	rep.sort()
	return rep, errs
}

// prune deletes one level below the base level in a single RemoveAll.
func (r *run) prune(e entry) LevelPrune {
	dir := filepath.Join(r.req.Root, e.name)
	tiles, bytes := levelStats(r.fs, dir, r.Format)
	p := LevelPrune{Z: e.key, Tiles: tiles, Bytes: bytes}
	if !r.DryRun {
		if err := r.fs.RemoveAll(dir); err != nil {
			p.Err = fsError("remove", dir, err)
			r.sink.Event(Event{Kind: EventFSError, From: Coord{Z: e.key}, Err: p.Err})
			return p
		}
	}
	r.sink.Event(Event{Kind: EventPruned, From: Coord{Z: e.key}, Count: tiles})
	return p
}

// column is one column of a level with its tiles staged for moving.
type column struct {
	entry
	tiles *dirListing
	plan  movePlan
}

// stage is the renumbering of one directory along one axis.
type stage struct {
	z      int
	dir    string
	key    string // journal key of dir
	axis   Axis
	suffix string
	// from and to turn a key into the coordinate before and after the move.
	from, to func(int) Coord
}

func (r *run) tileName(y int) string {
	return strconv.Itoa(y) + "." + r.Format
}

func (r *run) journalError(err error) *FSError {
	return fsError("journal", r.journal.path, err)
}

// shiftLevel stages every column and tile move of the level, then moves the
// columns, then the tiles inside them. A level an earlier run left
// unfinished is completed first. The error is non-nil only when the level
// could not be processed at all.
func (r *run) shiftLevel(e entry) (LevelReport, error) {
	z := e.key
	dir := filepath.Join(r.req.Root, e.name)
	lr := LevelReport{Z: z}
	if z > ZoomMax {
		return lr, errors.Errorf("zoom %d is above %d", z, ZoomMax)
	}

	fail := func(err *FSError) {
		lr.Errors = append(lr.Errors, err)
		r.sink.Event(Event{Kind: EventFSError, From: Coord{Z: z}, Err: err})
	}

	if p := r.journal.Pending(z); p != nil && !r.DryRun {
		if err := r.resume(dir, p, &lr, fail); err != nil {
			fail(err)
			return lr, err
		}
	}

	centered := r.journal.IsCentered(z)
	off := ComputeOffset(z, r.req.BaseZ, r.req.Shift, centered)
	lr.Offset, lr.Centered = off, centered
	r.sink.Event(Event{Kind: EventLevelStart, From: Coord{Z: z}, Offset: off})

	cols, err := r.listColumns(dir, centered, &lr, fail)
	if err != nil {
		fail(err)
		return lr, err
	}

	var work []column
	for _, c := range cols.entries {
		if !centered {
			if _, ok := (Coord{Z: z, X: c.key}).Tile(); !ok {
				r.sink.Event(Event{Kind: EventOutOfGrid, Axis: AxisX, From: Coord{Z: z, X: c.key}})
			}
		}
		tiles, err := r.listColumnTiles(filepath.Join(dir, c.name), centered, &lr, fail)
		if err != nil {
			fail(err)
			continue
		}
		work = append(work, column{entry: c, tiles: tiles, plan: planMoves(tiles, off.DY, r.tileName)})
	}
	colPlan := planMoves(cols, off.DX, strconv.Itoa)

	if !r.DryRun {
		if err := r.journal.Begin(off, r.id); err != nil {
			fe := r.journalError(err)
			fail(fe)
			return lr, fe
		}
	}

	total := len(colPlan.moves)
	for _, c := range work {
		total += len(c.plan.moves)
	}
	bar := r.newBar(z, total)

	// columns
	colCoord := func(x int) Coord { return Coord{Z: z, X: x} }
	landed := r.apply(stage{z: z, dir: dir, key: LevelDirKey, axis: AxisX, from: colCoord, to: colCoord}, colPlan, bar, &lr, fail)
	lr.ColumnsMoved += len(landed)

	// tiles, inside each column's new directory
	for _, c := range work {
		name, x := c.name, c.key
		if m, ok := landed[c.name]; ok {
			name, x = m.toName, m.to
		}
		origX := c.key
		tileCoord := func(y int) Coord { return Coord{Z: z, X: origX, Y: y} }
		movedCoord := func(y int) Coord { return Coord{Z: z, X: x, Y: y} }
		if !centered {
			for _, t := range c.tiles.entries {
				if _, ok := tileCoord(t.key).Tile(); !ok {
					r.sink.Event(Event{Kind: EventOutOfGrid, Axis: AxisY, From: tileCoord(t.key)})
				}
			}
		}
		st := stage{
			z:      z,
			dir:    filepath.Join(dir, name),
			key:    name,
			axis:   AxisY,
			suffix: "." + r.Format,
			from:   tileCoord,
			to:     movedCoord,
		}
		lr.TilesMoved += len(r.apply(st, c.plan, bar, &lr, fail))
	}
	r.finishBar(z, bar)

	if !r.DryRun {
		if err := r.journal.Done(off, r.id); err != nil {
			fail(r.journalError(err))
		}
	}
	r.sink.Event(Event{Kind: EventLevelDone, Offset: off, From: Coord{Z: z}, Count: lr.ColumnsMoved + lr.TilesMoved})
	return lr, nil
}

// resume completes the shift an interrupted run left in level dir, with the
// offset that run journaled, and marks the level done.
func (r *run) resume(dir string, p *LevelProgress, lr *LevelReport, fail func(*FSError)) *FSError {
	z := p.Offset.Z
	lr.Resumed = true
	r.sink.Event(Event{Kind: EventResumed, From: Coord{Z: z}, Offset: p.Offset, Name: p.RunID})

	colCoord := func(x int) Coord { return Coord{Z: z, X: x} }
	cols := stage{z: z, dir: dir, key: LevelDirKey, axis: AxisX, from: colCoord, to: colCoord}
	n, err := r.finish(cols, p, p.Offset.DX, strconv.Itoa, lr, fail, func() (*dirListing, error) {
		return listDirs(r.fs, dir, true)
	})
	if err != nil {
		return err
	}
	lr.ColumnsMoved += n

	l, lerr := listDirs(r.fs, dir, true)
	if lerr != nil {
		return asFSError("list", dir, lerr)
	}
	for _, c := range l.entries {
		cdir := filepath.Join(dir, c.name)
		x := c.key
		tileCoord := func(y int) Coord { return Coord{Z: z, X: x, Y: y} }
		st := stage{z: z, dir: cdir, key: c.name, axis: AxisY, suffix: "." + r.Format, from: tileCoord, to: tileCoord}
		n, err := r.finish(st, p, p.Offset.DY, r.tileName, lr, fail, func() (*dirListing, error) {
			return listTiles(r.fs, cdir, r.Format, true)
		})
		if err != nil {
			fail(err)
			continue
		}
		lr.TilesMoved += n
	}

	if err := r.journal.Done(p.Offset, r.id); err != nil {
		return r.journalError(err)
	}
	return nil
}

// finish brings one directory of an interrupted level to its renumbered
// state. Once renames to targets had started, parked entries go forward.
// Before that they go back to their sources and the directory is planned
// again. It returns the number of entries moved by the new plan.
func (r *run) finish(st stage, p *LevelProgress, delta int, name func(int) string, lr *LevelReport, fail func(*FSError), list func() (*dirListing, error)) (int, *FSError) {
	l, err := list()
	if err != nil {
		return 0, asFSError("list", st.dir, err)
	}
	if p.Moved(st.axis, st.key) {
		r.recover(st.dir, l, name, true, lr, fail)
		return 0, nil
	}
	if p.Committed(st.axis, st.key) {
		r.recover(st.dir, l, name, true, lr, fail)
		if err := r.journal.Moved(st.z, st.axis, st.key, r.id); err != nil {
			fail(r.journalError(err))
		}
		return 0, nil
	}
	if r.recover(st.dir, l, name, false, lr, fail) > 0 {
		if l, err = list(); err != nil {
			return 0, asFSError("list", st.dir, err)
		}
	}
	return len(r.apply(st, planMoves(l, delta, name), nil, lr, fail)), nil
}

func (r *run) listColumns(dir string, signed bool, lr *LevelReport, fail func(*FSError)) (*dirListing, *FSError) {
	return r.listRecovered(dir, lr, fail, strconv.Itoa, func() (*dirListing, error) {
		return listDirs(r.fs, dir, signed)
	})
}

func (r *run) listColumnTiles(dir string, signed bool, lr *LevelReport, fail func(*FSError)) (*dirListing, *FSError) {
	return r.listRecovered(dir, lr, fail, r.tileName, func() (*dirListing, error) {
		return listTiles(r.fs, dir, r.Format, signed)
	})
}

// listRecovered lists a directory, first finishing any moves an interrupted
// run left under temporary names.
func (r *run) listRecovered(dir string, lr *LevelReport, fail func(*FSError), name func(int) string, list func() (*dirListing, error)) (*dirListing, *FSError) {
	l, err := list()
	if err != nil {
		return nil, asFSError("list", dir, err)
	}
	if r.recover(dir, l, name, true, lr, fail) == 0 {
		return l, nil
	}
	l, err = list()
	if err != nil {
		return nil, asFSError("list", dir, err)
	}
	return l, nil
}

// recover renames the temporary entries of l and returns how many it moved.
func (r *run) recover(dir string, l *dirListing, name func(int) string, forward bool, lr *LevelReport, fail func(*FSError)) int {
	if len(l.temps) == 0 || r.DryRun {
		return 0
	}
	n, errs := recoverTemps(r.fs, dir, l, name, forward)
	for _, err := range errs {
		fail(err)
	}
	if n > 0 {
		lr.Recovered += n
		r.sink.Event(Event{Kind: EventRecovered, From: Coord{Z: lr.Z}, Count: n})
	}
	return n
}

// apply executes a plan and records its outcome. It returns the landed
// moves keyed by their original name.
func (r *run) apply(st stage, p movePlan, bar *pb.ProgressBar, lr *LevelReport, fail func(*FSError)) map[string]move {
	landed := make(map[string]move, len(p.moves))
	refused := p.collisions
	if r.DryRun {
		for _, m := range p.moves {
			landed[m.fromName] = m
		}
	} else {
		res := r.applyMoves(st, p.moves, bar)
		for _, m := range res.landed {
			landed[m.fromName] = m
		}
		refused = append(refused, res.refused...)
		for _, err := range res.errs {
			fail(err)
		}
		if err := r.journal.Moved(st.z, st.axis, st.key, r.id); err != nil {
			fail(r.journalError(err))
		}
	}

	for _, m := range refused {
		c := Collision{Axis: st.axis, From: st.from(m.from), To: st.to(m.to)}
		lr.Collisions = append(lr.Collisions, c)
		r.sink.Event(Event{Kind: EventCollision, Axis: st.axis, From: c.From, To: c.To})
	}
	for _, m := range p.resolved {
		if _, ok := landed[m.fromName]; !ok {
			continue
		}
		c := Collision{Axis: st.axis, From: st.from(m.from), To: st.to(m.to)}
		lr.Resolved = append(lr.Resolved, c)
		r.sink.Event(Event{Kind: EventResolved, Axis: st.axis, From: c.From, To: c.To})
	}
	return landed
}

func (r *run) applyMoves(st stage, moves []move, bar *pb.ProgressBar) moveResult {
	if len(moves) == 0 {
		return moveResult{}
	}
	names := make(map[string]bool)
	infos, err := afero.ReadDir(r.fs, st.dir)
	if err != nil {
		return moveResult{errs: []*FSError{fsError("list", st.dir, err)}}
	}
	for _, fi := range infos {
		names[fi.Name()] = true
	}
	commit := func() error {
		return r.journal.Commit(st.z, st.axis, st.key, r.id)
	}
	return applyMoves(r.fs, st.dir, r.id, st.suffix, moves, names, commit, func(m move) {
		if bar != nil {
			bar.Increment()
		}
		r.sink.Event(Event{Kind: EventMoved, Axis: st.axis, From: st.from(m.from), To: st.to(m.to)})
	})
}

// newBar returns the progress bar of level z. One level at a time gets a bar
// of its own; with several levels in flight they all count on one bar so the
// terminal output does not interleave.
func (r *run) newBar(z, total int) *pb.ProgressBar {
	if !r.Progress || r.DryRun || total == 0 {
		return nil
	}
	if r.workers() == 1 {
		return r.startBar(total, fmt.Sprintf("Zoom %d : ", z))
	}
	r.barMu.Lock()
	defer r.barMu.Unlock()
	r.barTotal += total
	if r.bar == nil {
		r.bar = r.startBar(r.barTotal, "Shift : ")
	} else {
		r.bar.SetTotal(r.barTotal)
	}
	return r.bar
}

func (r *run) startBar(total int, prefix string) *pb.ProgressBar {
	bar := pb.New(total).Prefix(prefix).Postfix("\n")
	if r.barOut != nil {
		bar.Output = r.barOut
	}
	bar.SetRefreshRate(time.Second)
	bar.Start()
	return bar
}

// finishBar closes a level's own bar. The shared bar is closed by Shift.
func (r *run) finishBar(z int, bar *pb.ProgressBar) {
	if bar == nil || r.workers() > 1 {
		return
	}
	bar.FinishPrint(fmt.Sprintf("Zoom %d finished ~", z))
}

func asFSError(op, path string, err error) *FSError {
	var fe *FSError
	if errors.As(err, &fe) {
		return fe
	}
	return fsError(op, path, err)
}
