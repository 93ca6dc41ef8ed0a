package main

import (
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// TileSize 默认瓦片大小
const TileSize = 512

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax 最大级别, 2^z 需要在 int 范围内做偏移计算
const ZoomMax = 30

// Constants representing TileFormat types
const (
	PNG  = "png"
	JPG  = "jpg"
	WEBP = "webp"
)

// Axis names the coordinate being renumbered.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

// Coord 瓦片坐标, 平移后可以为负
type Coord struct {
	Z, X, Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Tile returns the coordinate as a maptile.Tile and whether it lies inside
// the natural 2^z grid of its level.
func (c Coord) Tile() (maptile.Tile, bool) {
	if c.Z < ZoomMin || c.Z > ZoomMax || c.X < 0 || c.Y < 0 {
		return maptile.Tile{}, false
	}
	t := maptile.New(uint32(c.X), uint32(c.Y), maptile.Zoom(c.Z))
	return t, t.Valid()
}
