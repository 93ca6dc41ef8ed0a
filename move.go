package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// moveResult is what happened to a plan once it met the filesystem.
type moveResult struct {
	landed  []move
	refused []move
	errs    []*FSError
}

// applyMoves executes moves inside dir in two phases. Phase one renames every
// source to a temporary name, which frees all source names at once. Phase
// two renames temporaries to their targets. Sources that failed phase one
// stay where they are, and any move whose target they block is put back
// under its original name. commit runs between the phases; when it fails
// every entry goes back to its source.
func applyMoves(fs afero.Fs, dir, runID, suffix string, moves []move, names map[string]bool, commit func() error, done func(move)) moveResult {
	var res moveResult
	if len(moves) == 0 {
		return res
	}

	present := make(map[string]bool, len(names))
	for n := range names {
		present[n] = true
	}

	staged := make([]move, 0, len(moves))
	for _, m := range moves {
		tmp := tempName(runID, m.from, m.to, suffix)
		if err := fs.Rename(filepath.Join(dir, m.fromName), filepath.Join(dir, tmp)); err != nil {
			res.errs = append(res.errs, fsError("rename", filepath.Join(dir, m.fromName), err))
			continue
		}
		delete(present, m.fromName)
		present[tmp] = true
		m.src = tmp
		staged = append(staged, m)
	}

	// Entries put back under their original name pin that name too.
	var ok, refused []move
	for {
		ok, refused = settle(staged, present)
		grew := false
		for _, m := range refused {
			if !present[m.fromName] {
				present[m.fromName] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	for _, m := range refused {
		res.refused = append(res.refused, m)
		if err := fs.Rename(filepath.Join(dir, m.src), filepath.Join(dir, m.fromName)); err != nil {
			res.errs = append(res.errs, fsError("restore", filepath.Join(dir, m.src), err))
		}
	}

	if commit != nil && len(ok) > 0 {
		if err := commit(); err != nil {
			res.errs = append(res.errs, fsError("commit", dir, err))
			for _, m := range ok {
				if err := fs.Rename(filepath.Join(dir, m.src), filepath.Join(dir, m.fromName)); err != nil {
					res.errs = append(res.errs, fsError("restore", filepath.Join(dir, m.src), err))
				}
			}
			return res
		}
	}

	for _, m := range ok {
		target := filepath.Join(dir, m.toName)
		if exists, _ := afero.Exists(fs, target); exists {
			// Someone else wrote the target after planning.
			res.refused = append(res.refused, m)
			if err := fs.Rename(filepath.Join(dir, m.src), filepath.Join(dir, m.fromName)); err != nil {
				res.errs = append(res.errs, fsError("restore", filepath.Join(dir, m.src), err))
			}
			continue
		}
		if err := fs.Rename(filepath.Join(dir, m.src), target); err != nil {
			res.errs = append(res.errs, fsError("rename", filepath.Join(dir, m.src), err))
			if err := fs.Rename(filepath.Join(dir, m.src), filepath.Join(dir, m.fromName)); err != nil {
				res.errs = append(res.errs, fsError("restore", filepath.Join(dir, m.src), err))
			}
			continue
		}
		res.landed = append(res.landed, m)
		if done != nil {
			done(m)
		}
	}
	return res
}

// recoverTemps finishes moves left under temporary names by an interrupted
// run. With forward set an entry goes to its target when that is free and
// back to its source otherwise; without it the preference is reversed.
// It reports how many entries were recovered.
func recoverTemps(fs afero.Fs, dir string, l *dirListing, name func(int) string, forward bool) (int, []*FSError) {
	var (
		n    int
		errs []*FSError
	)
	for _, te := range l.temps {
		src := filepath.Join(dir, te.name)
		first, second := name(te.to), name(te.from)
		if !forward {
			first, second = second, first
		}
		dst := ""
		switch {
		case !l.names[first]:
			dst = first
		case !l.names[second]:
			dst = second
		default:
			errs = append(errs, fsError("recover", src, os.ErrExist))
			continue
		}
		if err := fs.Rename(src, filepath.Join(dir, dst)); err != nil {
			errs = append(errs, fsError("recover", src, err))
			continue
		}
		delete(l.names, te.name)
		l.names[dst] = true
		n++
	}
	return n, errs
}
