package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// writeTile stores a tile at root/z/x/y.ext with its coordinate as content.
func writeTile(t *testing.T, root string, c Coord, ext string) {
	t.Helper()
	dir := filepath.Join(root, fmt.Sprintf(`%d`, c.Z), fmt.Sprintf(`%d`, c.X))
	require.NoError(t, os.MkdirAll(dir, os.ModePerm))
	fileName := filepath.Join(dir, fmt.Sprintf(`%d.%s`, c.Y, ext))
	require.NoError(t, os.WriteFile(fileName, []byte(c.String()), 0644))
}

// buildPyramid writes every tile of levels 0..maxZ.
func buildPyramid(t *testing.T, root string, maxZ int) {
	t.Helper()
	for z := 0; z <= maxZ; z++ {
		n := 1 << uint(z)
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				writeTile(t, root, Coord{Z: z, X: x, Y: y}, WEBP)
			}
		}
	}
}

// snapshot maps the relative path of every file under root, except the
// journal, to its content.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || fi.Name() == JournalName {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// expectedShift is the snapshot a full pyramid should have after shifting.
func expectedShift(maxZ, baseZ int, shift Shift) map[string]string {
	out := make(map[string]string)
	for z := baseZ; z <= maxZ; z++ {
		off := ComputeOffset(z, baseZ, shift, false)
		n := 1 << uint(z)
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				orig := Coord{Z: z, X: x, Y: y}
				out[fmt.Sprintf("%d/%d/%d.webp", z, x+off.DX, y+off.DY)] = orig.String()
			}
		}
	}
	return out
}

// failingFs fails renames whose source matches.
type failingFs struct {
	afero.Fs
	fail func(oldname string) bool
}

func (f failingFs) Rename(oldname, newname string) error {
	if f.fail(oldname) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
	}
	return f.Fs.Rename(oldname, newname)
}

// failingRemoveFs fails RemoveAll.
type failingRemoveFs struct {
	afero.Fs
}

func (f failingRemoveFs) RemoveAll(path string) error {
	return &os.PathError{Op: "remove", Path: path, Err: os.ErrPermission}
}

// crashingFs stops the calling goroutine right before its at-th rename, the
// way a killed process leaves the tree behind.
type crashingFs struct {
	afero.Fs
	at    int32
	calls *int32
}

func (f crashingFs) Rename(oldname, newname string) error {
	if atomic.AddInt32(f.calls, 1) == f.at {
		runtime.Goexit()
	}
	return f.Fs.Rename(oldname, newname)
}
