package main

import (
	"math"
	"strconv"
	"strings"
)

// Shift is a displacement in base-level tile units.
type Shift struct {
	X, Y int
}

// ParseShift parses "X Y". An empty string means no shift.
func ParseShift(s string) (Shift, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Shift{}, nil
	}
	if len(fields) != 2 {
		return Shift{}, configErrorf("shift %q: want two integers \"X Y\", got %d values", s, len(fields))
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return Shift{}, configErrorf("shift %q: x is not an integer", s)
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return Shift{}, configErrorf("shift %q: y is not an integer", s)
	}
	return Shift{X: x, Y: y}, nil
}

func (s Shift) String() string {
	return strconv.Itoa(s.X) + " " + strconv.Itoa(s.Y)
}

// MaxShift is the largest shift magnitude that keeps every key of levels
// baseZ..ZoomMax inside an int once scaled and centered.
func MaxShift(baseZ int) int {
	return (math.MaxInt >> 1) >> uint(ZoomMax-baseZ)
}

// fits reports whether s can be scaled up to ZoomMax without overflow.
func (s Shift) fits(baseZ int) bool {
	m := MaxShift(baseZ)
	return s.X >= -m && s.X <= m && s.Y >= -m && s.Y <= m
}

// LevelOffset is the delta added to every column and tile key of level Z.
type LevelOffset struct {
	Z      int
	DX, DY int
}

// CenteringOffset moves the zero-origin 2^z grid onto a signed grid centered
// on the origin.
func CenteringOffset(z int) int {
	return -((1 << uint(z)) / 2)
}

// ScaleFactor is the number of level z tiles covered by one baseZ tile.
func ScaleFactor(z, baseZ int) int {
	return 1 << uint(z-baseZ)
}

// ComputeOffset returns the final offset of level z. Levels that were
// centered by an earlier run only receive the scaled shift.
func ComputeOffset(z, baseZ int, shift Shift, centered bool) LevelOffset {
	center := CenteringOffset(z)
	if centered {
		center = 0
	}
	scale := ScaleFactor(z, baseZ)
	return LevelOffset{
		Z:  z,
		DX: center + shift.X*scale,
		DY: center + shift.Y*scale,
	}
}
