package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "mtp",
	Short:         "Cut an image into a tile pyramid and shift it for overlay maps",
	Version:       "v0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return InitConf(configPath)
	},
}

var shiftCmd = &cobra.Command{
	Use:   "shift [root]",
	Short: "Prune and shift an existing z/x/y tile tree in place",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShift(cmd, args, false)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan [root]",
	Short: "Show what shift would do without touching the tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShift(cmd, args, true)
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <image>",
	Short: "Tile an image with vips, then prune and shift the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer SafeExitInst.Cleanup()

		logFile := ""
		if conf.Output.LogDir == "" {
			logFile = filepath.Join(filepath.Dir(args[0]), "maptotiles.log")
		}
		if err := InitLog(logLevel, logFile); err != nil {
			return err
		}
		task, err := NewTask(args[0], conf, ExecRunner{Log: log}, newShifter(false))
		if err != nil {
			return err
		}
		rep, err := task.Run()
		if rep != nil {
			rep.WriteSummary(cmd.OutOrStdout())
		}
		return err
	},
}

func runShift(cmd *cobra.Command, args []string, dryRun bool) error {
	defer SafeExitInst.Cleanup()

	if err := InitLog(logLevel, ""); err != nil {
		return err
	}
	root := ""
	if len(args) == 1 {
		root = args[0]
	}
	req, err := conf.request(root)
	if err != nil {
		return err
	}
	rep, err := newShifter(dryRun).Shift(req)
	if rep != nil {
		rep.WriteSummary(cmd.OutOrStdout())
	}
	return err
}

func newShifter(dryRun bool) *Shifter {
	s := NewShifter(conf.Pyramid.Format)
	s.Sink = LogSink{Log: log}
	s.Workers = conf.Task.Workers
	s.Progress = conf.Task.Progress
	s.DryRun = dryRun
	return s
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "./conf/conf.toml", "set config `file`")
	pf.StringVarP(&logLevel, "log-level", "l", "info", "set log level")
	pf.IntP("base-z", "z", 0, "lowest zoom level to keep, levels below are deleted")
	pf.StringP("shift", "s", "", `shift of the base level in tiles, "X Y"`)
	pf.String("format", WEBP, "tile file extension")
	pf.Int("workers", 1, "levels shifted in parallel")
	pf.Bool("progress", false, "show a progress bar per level")

	viper.BindPFlag("pyramid.baseZ", pf.Lookup("base-z"))
	viper.BindPFlag("pyramid.shift", pf.Lookup("shift"))
	viper.BindPFlag("pyramid.format", pf.Lookup("format"))
	viper.BindPFlag("task.workers", pf.Lookup("workers"))
	viper.BindPFlag("task.progress", pf.Lookup("progress"))

	buildCmd.Flags().Int("scale", 4, "upscale factor before tiling")
	buildCmd.Flags().Int("tile-size", TileSize, "tile size in pixels")
	viper.BindPFlag("producer.scale", buildCmd.Flags().Lookup("scale"))
	viper.BindPFlag("producer.tileSize", buildCmd.Flags().Lookup("tile-size"))

	rootCmd.AddCommand(shiftCmd, planCmd, buildCmd)
}

func execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if IsConfigError(err) {
			return 2
		}
		return 1
	}
	return 0
}
