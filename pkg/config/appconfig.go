// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/DataDog/restuned/pkg/classifier"
	restunederrors "github.com/DataDog/restuned/pkg/errors"
)

// perAppFile is the on-disk shape of the per-app config file: a map
// keyed by process comm to its AppConfig.
type perAppFile struct {
	Apps map[string]classifier.AppConfig `yaml:"apps"`
}

// LoadAppConfig reads path and returns the appName -> AppConfig map
// ready for AppConfigStore.Replace. A missing path is not an error —
// it yields an empty map, matching the "classifier disabled" case.
func LoadAppConfig(path string) (map[string]classifier.AppConfig, error) {
	if path == "" {
		return map[string]classifier.AppConfig{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]classifier.AppConfig{}, nil
		}
		return nil, restunederrors.Wrap(restunederrors.KindIO, "config.LoadAppConfig", "failed to read per-app config", err)
	}
	var f perAppFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, restunederrors.Wrap(restunederrors.KindParse, "config.LoadAppConfig", "failed to parse per-app config", err)
	}
	if f.Apps == nil {
		f.Apps = map[string]classifier.AppConfig{}
	}
	return f.Apps, nil
}
