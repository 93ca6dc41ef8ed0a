package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// VipsProducer cuts a source image into a google layout z/x/y tile tree
// with the vips command line tools.
type VipsProducer struct {
	Runner     Runner
	Vips       string
	Vipsheader string
	Scale      int
	Kernel     string
	Format     string
	Quality    int
	TileSize   int
	Background int
	Layout     string
	Centre     bool
}

// NewVipsProducer builds a producer from the producer and pyramid sections.
func NewVipsProducer(c *Conf, runner Runner) *VipsProducer {
	return &VipsProducer{
		Runner:     runner,
		Vips:       c.Producer.Vips,
		Vipsheader: c.Producer.Vipsheader,
		Scale:      c.Producer.Scale,
		Kernel:     c.Producer.Kernel,
		Format:     c.Pyramid.Format,
		Quality:    c.Producer.Quality,
		TileSize:   c.Producer.TileSize,
		Background: c.Producer.Background,
		Layout:     c.Producer.Layout,
		Centre:     c.Producer.Centre,
	}
}

// siblingPath returns dir/<stem><suffix>.png next to src.
func siblingPath(src, suffix string) string {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(filepath.Dir(src), stem+suffix+".png")
}

// Bands returns the number of image bands of src.
func (p *VipsProducer) Bands(src string) (int, error) {
	out, err := p.Runner.Run("", p.Vipsheader, "-f", "bands", src)
	if err != nil {
		return 0, errors.Wrap(err, "check bands")
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, errors.Wrapf(err, "parse bands of %s", src)
	}
	return n, nil
}

// EnsureAlpha returns src when it already has an alpha band, otherwise a
// png copy with one added. The caller owns the copy.
func (p *VipsProducer) EnsureAlpha(src string) (string, error) {
	bands, err := p.Bands(src)
	if err != nil {
		return "", err
	}
	if bands == 4 {
		return src, nil
	}
	dst := siblingPath(src, "_alpha")
	if _, err := p.Runner.Run("adding alpha channel", p.Vips, "addalpha", src, dst+"[strip]"); err != nil {
		return "", err
	}
	return dst, nil
}

// UpscalePath is where Upscale writes the enlarged copy of image.
func (p *VipsProducer) UpscalePath(image string) string {
	return siblingPath(image, fmt.Sprintf("_%dx", p.Scale))
}

// Upscale enlarges src by the configured factor into dst.
func (p *VipsProducer) Upscale(src, dst string) error {
	_, err := p.Runner.Run("upscaling image", p.Vips, "resize", src, dst, strconv.Itoa(p.Scale), "--kernel", p.Kernel)
	return err
}

// Tile writes the tile tree of src to root.
func (p *VipsProducer) Tile(src, root string) error {
	args := []string{
		"dzsave", src, root,
		"--suffix", fmt.Sprintf(".%s[Q=%d]", p.Format, p.Quality),
	}
	if p.Centre {
		args = append(args, "--centre")
	}
	args = append(args,
		"--layout", p.Layout,
		"--background", strconv.Itoa(p.Background),
		"--tile-size", strconv.Itoa(p.TileSize),
	)
	_, err := p.Runner.Run("cutting tiles", p.Vips, args...)
	return err
}
