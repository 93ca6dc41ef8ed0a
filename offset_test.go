package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenteringOffset(t *testing.T) {
	for z, want := range []int{0, -1, -2, -4, -8} {
		assert.Equal(t, want, CenteringOffset(z), "z=%d", z)
	}
}

func TestComputeOffset(t *testing.T) {
	for _, baseZ := range []int{0, 2, 5} {
		for _, sx := range []int{0, -2, 5} {
			shift := Shift{X: sx, Y: -sx}

			off := ComputeOffset(baseZ, baseZ, shift, false)
			assert.Equal(t, -(1<<uint(baseZ))/2+sx, off.DX)
			assert.Equal(t, -(1<<uint(baseZ))/2-sx, off.DY)

			for _, dz := range []int{1, 3} {
				z := baseZ + dz
				off := ComputeOffset(z, baseZ, shift, false)
				assert.Equal(t, z, off.Z)
				assert.Equal(t, -(1<<uint(z))/2+sx*(1<<uint(dz)), off.DX, "z=%d base=%d shift=%d", z, baseZ, sx)
				assert.Equal(t, -(1<<uint(z))/2-sx*(1<<uint(dz)), off.DY, "z=%d base=%d shift=%d", z, baseZ, sx)
			}
		}
	}
}

func TestComputeOffsetScenario(t *testing.T) {
	shift := Shift{X: 1}
	l2 := ComputeOffset(2, 2, shift, false)
	assert.Equal(t, -1, l2.DX)
	assert.Equal(t, 1, 2+l2.DX)

	l3 := ComputeOffset(3, 2, shift, false)
	assert.Equal(t, -2, l3.DX)
	assert.Equal(t, 3, 5+l3.DX)
}

func TestComputeOffsetCentered(t *testing.T) {
	off := ComputeOffset(4, 2, Shift{}, true)
	assert.Equal(t, LevelOffset{Z: 4}, off)

	off = ComputeOffset(4, 2, Shift{X: 1, Y: -1}, true)
	assert.Equal(t, LevelOffset{Z: 4, DX: 4, DY: -4}, off)
}

func TestParseShift(t *testing.T) {
	s, err := ParseShift("")
	require.NoError(t, err)
	assert.Equal(t, Shift{}, s)

	s, err = ParseShift("  2   -3 ")
	require.NoError(t, err)
	assert.Equal(t, Shift{X: 2, Y: -3}, s)

	for _, bad := range []string{"1", "1 2 3", "a 2", "1 b", "1.5 2"} {
		_, err := ParseShift(bad)
		require.Error(t, err, bad)
		assert.True(t, IsConfigError(err), bad)
	}
}
