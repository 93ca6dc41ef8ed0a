package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeRunner records commands and answers from a table keyed by subcommand.
type fakeRunner struct {
	calls []call
	out   map[string]string
	fail  map[string]bool
	do    map[string]func(args []string)
}

func (f *fakeRunner) Run(description string, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	key := name
	if len(args) > 0 {
		key = args[0]
	}
	if f.fail[key] {
		return "", errors.New(key + " failed")
	}
	if do := f.do[key]; do != nil {
		do(args)
	}
	return f.out[key], nil
}

func testProducer(r Runner) *VipsProducer {
	c := new(Conf)
	c.Pyramid.Format = WEBP
	c.Producer.Vips = "vips"
	c.Producer.Vipsheader = "vipsheader"
	c.Producer.Scale = 4
	c.Producer.Kernel = "nearest"
	c.Producer.Quality = 90
	c.Producer.TileSize = 512
	c.Producer.Layout = "google"
	c.Producer.Centre = true
	return NewVipsProducer(c, r)
}

func TestEnsureAlpha(t *testing.T) {
	r := &fakeRunner{out: map[string]string{"-f": "4\n"}}
	got, err := testProducer(r).EnsureAlpha("/maps/world.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/maps/world.jpg", got)
	assert.Len(t, r.calls, 1)

	r = &fakeRunner{out: map[string]string{"-f": "3\n"}}
	got, err = testProducer(r).EnsureAlpha("/maps/world.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/maps/world_alpha.png", got)
	require.Len(t, r.calls, 2)
	assert.Equal(t, call{name: "vips", args: []string{"addalpha", "/maps/world.jpg", "/maps/world_alpha.png[strip]"}}, r.calls[1])
}

func TestEnsureAlphaBadHeader(t *testing.T) {
	r := &fakeRunner{out: map[string]string{"-f": "lots"}}
	_, err := testProducer(r).EnsureAlpha("/maps/world.jpg")
	assert.Error(t, err)

	r = &fakeRunner{fail: map[string]bool{"-f": true}}
	_, err = testProducer(r).EnsureAlpha("/maps/world.jpg")
	assert.Error(t, err)
}

func TestUpscaleAndTile(t *testing.T) {
	r := &fakeRunner{}
	p := testProducer(r)

	dst := p.UpscalePath("/maps/world.jpg")
	assert.Equal(t, "/maps/world_4x.png", dst)
	require.NoError(t, p.Upscale("/maps/world_alpha.png", dst))
	require.NoError(t, p.Tile(dst, "/maps/world"))

	require.Len(t, r.calls, 2)
	assert.Equal(t, "resize /maps/world_alpha.png /maps/world_4x.png 4 --kernel nearest", strings.Join(r.calls[0].args, " "))
	assert.Equal(t,
		"dzsave /maps/world_4x.png /maps/world --suffix .webp[Q=90] --centre --layout google --background 0 --tile-size 512",
		strings.Join(r.calls[1].args, " "))
}
