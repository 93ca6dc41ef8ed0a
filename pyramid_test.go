package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in     string
		signed bool
		want   int
		ok     bool
	}{
		{"12", false, 12, true},
		{"007", false, 7, true},
		{"-3", false, 0, false},
		{"-3", true, -3, true},
		{"+3", true, 0, false},
		{"", true, 0, false},
		{"-", true, 0, false},
		{"a1", false, 0, false},
		{"1a", true, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseKey(tt.in, tt.signed)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestTempName(t *testing.T) {
	name := tempName("a-B_9", -2, 5, ".webp")
	te, ok := parseTempName(name, ".webp")
	require.True(t, ok)
	assert.Equal(t, -2, te.from)
	assert.Equal(t, 5, te.to)

	_, ok = parseTempName(name, ".png")
	assert.False(t, ok)
	_, ok = parseTempName("5.webp", ".webp")
	assert.False(t, ok)

	te, ok = parseTempName(tempName("id", 3, -1, ""), "")
	require.True(t, ok)
	assert.Equal(t, 3, te.from)
	assert.Equal(t, -1, te.to)
}

func TestListTiles(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"0.webp", "2.webp", "10.webp", "3.png", "x.webp", "-1.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "4.webp"), 0755))

	l, err := listTiles(afero.NewOsFs(), dir, WEBP, false)
	require.NoError(t, err)
	var got []int
	for _, e := range l.entries {
		got = append(got, e.key)
	}
	assert.Equal(t, []int{0, 2, 10}, got)
	assert.True(t, l.names["3.png"])
	assert.True(t, l.names["4.webp"])

	l, err = listTiles(afero.NewOsFs(), dir, WEBP, true)
	require.NoError(t, err)
	assert.Len(t, l.entries, 4)
}

func TestListDirsMissing(t *testing.T) {
	_, err := listDirs(afero.NewOsFs(), filepath.Join(t.TempDir(), "nope"), false)
	var fe *FSError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "list", fe.Op)
}

func TestCoordTile(t *testing.T) {
	_, ok := Coord{Z: 2, X: 3, Y: 3}.Tile()
	assert.True(t, ok)
	_, ok = Coord{Z: 2, X: 4, Y: 0}.Tile()
	assert.False(t, ok)
	_, ok = Coord{Z: 2, X: -1, Y: 0}.Tile()
	assert.False(t, ok)
}
