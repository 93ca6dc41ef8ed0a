package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/teris-io/shortid"
)

// Task 从一张图片生成平移后的瓦片金字塔
type Task struct {
	ID       string
	Image    string
	Root     string
	Request  Request
	Producer *VipsProducer
	Shifter  *Shifter

	temps []string
}

// NewTask validates the request and lays out the paths of a build. The tile
// tree goes to a directory named after the image, next to it.
func NewTask(image string, c *Conf, runner Runner, shifter *Shifter) (*Task, error) {
	image, err := homedir.Expand(strings.Trim(image, `"`))
	if err != nil {
		return nil, configErrorf("image path %s: %v", image, err)
	}
	if image == "" {
		return nil, configErrorf("no source image")
	}
	stem := strings.TrimSuffix(filepath.Base(image), filepath.Ext(image))
	root := filepath.Join(filepath.Dir(image), stem)
	req, err := c.request(root)
	if err != nil {
		return nil, err
	}
	id, _ := shortid.Generate()
	return &Task{
		ID:       id,
		Image:    image,
		Root:     root,
		Request:  req,
		Producer: NewVipsProducer(c, runner),
		Shifter:  shifter,
	}, nil
}

// Run produces the tile tree and shifts it. Temporary images are removed by
// Cleanup, which Run registers with SafeExitInst.
func (task *Task) Run() (*Report, error) {
	start := time.Now()
	SafeExitInst.Register(task.Cleanup)

	input, err := task.Producer.EnsureAlpha(task.Image)
	if err != nil {
		return nil, err
	}
	if input != task.Image {
		task.temps = append(task.temps, input)
	}

	// 清理上次的结果
	if _, err := os.Stat(task.Root); err == nil {
		log.Infof("removing previous output %s", task.Root)
		if err := os.RemoveAll(task.Root); err != nil {
			return nil, errors.Wrapf(err, "remove %s", task.Root)
		}
	}

	scaled := task.Producer.UpscalePath(task.Image)
	task.temps = append(task.temps, scaled)
	if err := task.Producer.Upscale(input, scaled); err != nil {
		return nil, err
	}
	if err := task.Producer.Tile(scaled, task.Root); err != nil {
		return nil, err
	}

	rep, err := task.Shifter.Shift(task.Request)
	log.Infof("task %s finished in %.3fs", task.ID, time.Since(start).Seconds())
	return rep, err
}

// Cleanup removes the temporary images of the task.
func (task *Task) Cleanup() {
	for _, p := range task.temps {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		log.Infof("removing temporary file %s", p)
		if err := os.Remove(p); err != nil {
			log.Warnf("remove %s: %v", p, err)
		}
	}
	task.temps = nil
}
