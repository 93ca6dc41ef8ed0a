package main

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// entry is one numbered child of a pyramid directory: a level, a column or a tile.
type entry struct {
	name string
	key  int
}

// dirListing is the numbered children of a directory plus every name in it,
// numbered or not, for occupancy checks.
type dirListing struct {
	entries []entry
	names   map[string]bool
	temps   []tempEntry
}

type tempEntry struct {
	name     string
	from, to int
}

const tempPrefix = ".mtp."

var tempNamePattern = regexp.MustCompile(`^\.mtp\.[^.]+\.(-?[0-9]+)\.(-?[0-9]+)$`)

// tempName is the phase one name of an entry moving from one key to another.
// Both keys are kept so an interrupted run can be finished by the next one.
func tempName(runID string, from, to int, suffix string) string {
	return tempPrefix + runID + "." + strconv.Itoa(from) + "." + strconv.Itoa(to) + suffix
}

func parseTempName(name, suffix string) (tempEntry, bool) {
	if !strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, suffix) {
		return tempEntry{}, false
	}
	m := tempNamePattern.FindStringSubmatch(strings.TrimSuffix(name, suffix))
	if m == nil {
		return tempEntry{}, false
	}
	from, err := strconv.Atoi(m[1])
	if err != nil {
		return tempEntry{}, false
	}
	to, err := strconv.Atoi(m[2])
	if err != nil {
		return tempEntry{}, false
	}
	return tempEntry{name: name, from: from, to: to}, true
}

// parseKey accepts decimal digits, with a leading minus when signed is set.
func parseKey(s string, signed bool) (int, bool) {
	digits := s
	if signed && strings.HasPrefix(s, "-") {
		digits = s[1:]
	}
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func sortEntries(es []entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].key != es[j].key {
			return es[i].key < es[j].key
		}
		return es[i].name < es[j].name
	})
}

// canonicalFirst orders entries by key and, within one key, puts the plain
// spelling ("2" before "02") first.
func canonicalFirst(es []entry) []entry {
	out := append([]entry(nil), es...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].key != out[j].key {
			return out[i].key < out[j].key
		}
		return out[i].name == strconv.Itoa(out[i].key) && out[j].name != strconv.Itoa(out[j].key)
	})
	return out
}

// listDirs lists the numbered subdirectories of dir.
func listDirs(fs afero.Fs, dir string, signed bool) (*dirListing, error) {
	return list(fs, dir, "", signed, func(fi os.FileInfo) bool { return fi.IsDir() })
}

// listTiles lists the numbered tile files of a column with the given extension.
func listTiles(fs afero.Fs, dir, ext string, signed bool) (*dirListing, error) {
	return list(fs, dir, "."+ext, signed, func(fi os.FileInfo) bool { return fi.Mode().IsRegular() })
}

func list(fs afero.Fs, dir, suffix string, signed bool, keep func(os.FileInfo) bool) (*dirListing, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fsError("list", dir, err)
	}
	l := &dirListing{names: make(map[string]bool, len(infos))}
	for _, fi := range infos {
		name := fi.Name()
		l.names[name] = true
		if !keep(fi) {
			continue
		}
		if te, ok := parseTempName(name, suffix); ok {
			l.temps = append(l.temps, te)
			continue
		}
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		if key, ok := parseKey(strings.TrimSuffix(name, suffix), signed); ok {
			l.entries = append(l.entries, entry{name: name, key: key})
		}
	}
	sortEntries(l.entries)
	return l, nil
}

// levelStats counts the tiles of the given format under a level directory
// and their total size.
func levelStats(fs afero.Fs, dir, ext string) (tiles int, bytes int64) {
	_ = afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if fi.Mode().IsRegular() && filepath.Ext(path) == "."+ext {
			tiles++
			bytes += fi.Size()
		}
		return nil
	})
	return tiles, bytes
}
