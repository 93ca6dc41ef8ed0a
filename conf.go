package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var conf *Conf

type Conf struct {
	App struct {
		Version string `mapstructure:"version"`
		Title   string `mapstructure:"title"`
	} `mapstructure:"app"`
	Output struct {
		LogDir         string `mapstructure:"logDir"`
		OutputTerminal bool   `mapstructure:"outputTerminal"`
	} `mapstructure:"output"`
	Task struct {
		Workers  int  `mapstructure:"workers"`
		Progress bool `mapstructure:"progress"`
	} `mapstructure:"task"`
	Pyramid struct {
		Root   string `mapstructure:"root"`
		Format string `mapstructure:"format"`
		BaseZ  int    `mapstructure:"baseZ"`
		Shift  string `mapstructure:"shift"`
	} `mapstructure:"pyramid"`
	Producer struct {
		Vips       string `mapstructure:"vips"`
		Vipsheader string `mapstructure:"vipsheader"`
		Scale      int    `mapstructure:"scale"`
		Kernel     string `mapstructure:"kernel"`
		Quality    int    `mapstructure:"quality"`
		TileSize   int    `mapstructure:"tileSize"`
		Background int    `mapstructure:"background"`
		Layout     string `mapstructure:"layout"`
		Centre     bool   `mapstructure:"centre"`
	} `mapstructure:"producer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.version", "v 0.1.0")
	v.SetDefault("app.title", "Map To Pyramid")
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("task.workers", 1)
	v.SetDefault("task.progress", false)
	v.SetDefault("pyramid.format", WEBP)
	v.SetDefault("pyramid.baseZ", 0)
	v.SetDefault("pyramid.shift", "")
	v.SetDefault("producer.vips", "vips")
	v.SetDefault("producer.vipsheader", "vipsheader")
	v.SetDefault("producer.scale", 4)
	v.SetDefault("producer.kernel", "nearest")
	v.SetDefault("producer.quality", 90)
	v.SetDefault("producer.tileSize", TileSize)
	v.SetDefault("producer.background", 0)
	v.SetDefault("producer.layout", "google")
	v.SetDefault("producer.centre", true)
}

// InitConf 初始化配置. 配置文件不存在时使用默认值
func InitConf(cfgFile string) error {
	c, err := loadConf(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	conf = c
	return nil
}

func loadConf(v *viper.Viper, cfgFile string) (*Conf, error) {
	setDefaults(v)
	v.SetEnvPrefix("MTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, errors.Wrapf(err, "expand config path %s", cfgFile)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "config file(%s) not exist, using defaults\n", path)
		} else {
			v.SetConfigType("toml")
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "read config file(%s)", v.ConfigFileUsed())
			}
		}
	}

	c := new(Conf)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "配置文件解析失败")
	}
	return c, nil
}

// request builds the shift request from the pyramid section.
func (c *Conf) request(root string) (Request, error) {
	shift, err := ParseShift(c.Pyramid.Shift)
	if err != nil {
		return Request{}, err
	}
	if c.Pyramid.BaseZ < 0 {
		return Request{}, configErrorf("base z %d is negative", c.Pyramid.BaseZ)
	}
	if root == "" {
		root = c.Pyramid.Root
	}
	root, err = homedir.Expand(root)
	if err != nil {
		return Request{}, configErrorf("pyramid root %s: %v", root, err)
	}
	return Request{Root: root, BaseZ: c.Pyramid.BaseZ, Shift: shift}, nil
}
