package main

import (
	"bytes"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Runner executes an external command. A non-nil error means the command
// failed and the workflow around it must stop.
type Runner interface {
	Run(description string, name string, args ...string) (stdout string, err error)
}

// ExecRunner runs commands with os/exec and logs what they print.
type ExecRunner struct {
	Log logrus.FieldLogger
}

func (r ExecRunner) Run(description string, name string, args ...string) (string, error) {
	if description != "" {
		r.Log.Info(description)
	}
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Log.Debugf("+ %s %s", name, strings.Join(args, " "))
	err := cmd.Run()
	for _, line := range strings.Split(stderr.String(), "\n") {
		if line == "" {
			continue
		}
		r.Log.Debug(line)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		r.Log.Errorf("command %s failed: %s", name, msg)
		return stdout.String(), errors.Wrapf(err, "command %s %s: %s", name, strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}
