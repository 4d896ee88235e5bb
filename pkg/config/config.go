// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package config implements restuned's on-disk configuration: a
// viper-backed YAML loader for the daemon's static settings, plus
// fsnotify-driven hot reload of the classifier's per-app config and
// filter-list files. restuned never hand-rolls a YAML parser — this is
// the single place the on-disk format is interpreted.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	restunederrors "github.com/DataDog/restuned/pkg/errors"
)

// Config is the full set of daemon-level settings loaded from YAML.
type Config struct {
	Queue struct {
		CapacityPerPriority int `mapstructure:"capacity_per_priority"`
	} `mapstructure:"queue"`

	Timers struct {
		PoolSize int `mapstructure:"pool_size"`
	} `mapstructure:"timers"`

	GC struct {
		IntervalSeconds int `mapstructure:"interval_seconds"`
		BatchSize       int `mapstructure:"batch_size"`
	} `mapstructure:"gc"`

	Topology struct {
		OnlineCpuPath string `mapstructure:"online_cpu_path"`
		CoreCount     int    `mapstructure:"core_count_override"`
	} `mapstructure:"topology"`

	Classifier struct {
		Enabled       bool   `mapstructure:"enabled"`
		ModelPath     string `mapstructure:"model_path"`
		AllowListPath string `mapstructure:"allow_list_path"`
		BlockListPath string `mapstructure:"block_list_path"`
		PerAppPath    string `mapstructure:"per_app_config_path"`
		ProcRoot      string `mapstructure:"proc_root"`
		QueueDepth    int    `mapstructure:"queue_depth"`
	} `mapstructure:"classifier"`

	Persistence struct {
		FilePath string `mapstructure:"file_path"`
	} `mapstructure:"persistence"`

	CGroupRoot string `mapstructure:"cgroup_root"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.capacity_per_priority", 64)
	v.SetDefault("timers.pool_size", 4)
	v.SetDefault("gc.interval_seconds", 83)
	v.SetDefault("gc.batch_size", 20)
	v.SetDefault("topology.online_cpu_path", "/sys/devices/system/cpu/online")
	v.SetDefault("classifier.enabled", true)
	v.SetDefault("classifier.proc_root", "/proc")
	v.SetDefault("classifier.queue_depth", 30)
	v.SetDefault("persistence.file_path", "/var/lib/restuned/defaults.csv")
	v.SetDefault("cgroup_root", "/sys/fs/cgroup")
	v.SetDefault("log.level", "info")
}

// Load reads and decodes path into a Config. Every setting has a
// baked-in default, so a missing or partial file is not an error —
// only a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RESTUNED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, restunederrors.Wrap(restunederrors.KindParse, "config.Load", "failed to parse config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, restunederrors.Wrap(restunederrors.KindParse, "config.Load", "failed to decode config", err)
	}
	return &cfg, nil
}

// GCInterval returns the configured GC sweep interval as a
// time.Duration, for callers that prefer not to juggle raw seconds.
func (c *Config) GCInterval() time.Duration {
	return time.Duration(c.GC.IntervalSeconds) * time.Second
}
