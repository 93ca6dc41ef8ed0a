package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	root := t.TempDir()
	fs := afero.NewOsFs()

	j, err := OpenJournal(fs, root)
	require.NoError(t, err)
	assert.False(t, j.IsCentered(3))

	require.NoError(t, j.Done(LevelOffset{Z: 3, DX: -4, DY: -3}, "run1"))
	require.NoError(t, j.Done(LevelOffset{Z: 4, DX: -8, DY: -6}, "run1"))
	assert.True(t, j.IsCentered(3))

	j, err = OpenJournal(fs, root)
	require.NoError(t, err)
	assert.True(t, j.IsCentered(3))
	assert.True(t, j.IsCentered(4))
	assert.False(t, j.IsCentered(5))

	data, err := os.ReadFile(filepath.Join(root, JournalName))
	require.NoError(t, err)
	assert.Equal(t, "done 3 -4 -3 run1\ndone 4 -8 -6 run1\n", string(data))
}

func TestJournalSkipsGarbage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, JournalName), []byte("junk\n2 0 0 ok\n\n"), 0644))

	j, err := OpenJournal(afero.NewOsFs(), root)
	require.NoError(t, err)
	assert.True(t, j.IsCentered(2))
	assert.False(t, j.IsCentered(0))
}

func TestJournalPending(t *testing.T) {
	root := t.TempDir()
	fs := afero.NewOsFs()

	j, err := OpenJournal(fs, root)
	require.NoError(t, err)
	off := LevelOffset{Z: 2, DX: -2, DY: -1}
	require.NoError(t, j.Begin(off, "run1"))
	require.NoError(t, j.Commit(2, AxisX, LevelDirKey, "run1"))
	require.NoError(t, j.Moved(2, AxisX, LevelDirKey, "run1"))
	require.NoError(t, j.Commit(2, AxisY, "-2", "run1"))
	require.NoError(t, j.Begin(LevelOffset{Z: 3, DX: -4, DY: -4}, "run1"))
	require.NoError(t, j.Done(LevelOffset{Z: 3, DX: -4, DY: -4}, "run1"))

	// 重新读取, 与内存状态一致
	j, err = OpenJournal(fs, root)
	require.NoError(t, err)
	assert.False(t, j.IsCentered(2))
	assert.True(t, j.IsCentered(3))
	assert.Nil(t, j.Pending(3))

	p := j.Pending(2)
	require.NotNil(t, p)
	assert.Equal(t, off, p.Offset)
	assert.Equal(t, "run1", p.RunID)
	assert.True(t, p.Moved(AxisX, LevelDirKey))
	assert.True(t, p.Committed(AxisY, "-2"))
	assert.False(t, p.Moved(AxisY, "-2"))
	assert.False(t, p.Committed(AxisY, "-1"))

	// a new begin starts over
	require.NoError(t, j.Begin(LevelOffset{Z: 2}, "run2"))
	assert.False(t, j.Pending(2).Committed(AxisY, "-2"))
	require.NoError(t, j.Done(LevelOffset{Z: 2}, "run2"))
	assert.Nil(t, j.Pending(2))
	assert.True(t, j.IsCentered(2))
}
