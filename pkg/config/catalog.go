// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package config

import (
	"os"

	"gopkg.in/yaml.v3"

	restunederrors "github.com/DataDog/restuned/pkg/errors"
	"github.com/DataDog/restuned/pkg/kernelapplier"
	"github.com/DataDog/restuned/pkg/types"
)

// catalogEntry is the on-disk shape of one resource catalog line,
// mirroring the fields RestuneParser reads out of its YAML resource
// node (resType/resId/path/policy/permission/highThreshold/...).
type catalogEntry struct {
	ResType       uint8    `yaml:"resType"`
	ResId         uint16   `yaml:"resId"`
	Path          string   `yaml:"path"`
	ApplyScope    string   `yaml:"applyScope"`
	Policy        string   `yaml:"policy"`
	Permission    string   `yaml:"permission"`
	Modes         []string `yaml:"modes"`
	HighThreshold int32    `yaml:"highThreshold"`
	LowThreshold  int32    `yaml:"lowThreshold"`
	Unit          string   `yaml:"unit"`
	DefaultValue  int32    `yaml:"defaultValue"`
}

type catalogFile struct {
	Resources []catalogEntry `yaml:"resources"`
}

var applyScopes = map[string]types.ApplyScope{
	"global":  types.ApplyGlobal,
	"core":    types.ApplyCore,
	"cluster": types.ApplyCluster,
	"cgroup":  types.ApplyCgroup,
}

var policies = map[string]types.Policy{
	"instant":           types.PolicyInstant,
	"higherBetter":      types.PolicyHigherBetter,
	"lowerBetter":       types.PolicyLowerBetter,
	"lazy":              types.PolicyLazy,
	"passThrough":       types.PolicyPassThrough,
	"passThroughAppend": types.PolicyPassThroughAppend,
}

var permissions = map[string]types.Permission{
	"system":     types.PermissionSystem,
	"thirdParty": types.PermissionThirdParty,
}

var deviceModes = map[string]types.DeviceMode{
	"resume":  types.ModeResume,
	"suspend": types.ModeSuspend,
	"doze":    types.ModeDoze,
}

// LoadResourceCatalog reads path and builds one *types.ResourceConfig
// per entry, wiring each to a default sysfs applier/tear pair bound to
// topo and ka. A missing path yields an empty catalog.
func LoadResourceCatalog(path string, topo kernelapplier.PathTopology, ka kernelapplier.KernelApplier) ([]*types.ResourceConfig, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, restunederrors.Wrap(restunederrors.KindIO, "config.LoadResourceCatalog", "failed to read resource catalog", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, restunederrors.Wrap(restunederrors.KindParse, "config.LoadResourceCatalog", "failed to parse resource catalog", err)
	}

	out := make([]*types.ResourceConfig, 0, len(f.Resources))
	for _, e := range f.Resources {
		cfg, err := e.toResourceConfig()
		if err != nil {
			return nil, err
		}
		cfg.Applier = kernelapplier.NewDefaultApplier(cfg, topo, ka)
		cfg.Tear = kernelapplier.NewDefaultTear(cfg, topo, ka)
		out = append(out, cfg)
	}
	return out, nil
}

func (e catalogEntry) toResourceConfig() (*types.ResourceConfig, error) {
	scope, ok := applyScopes[e.ApplyScope]
	if !ok {
		return nil, restunederrors.New(restunederrors.KindParse, "config.LoadResourceCatalog", "unknown applyScope "+e.ApplyScope)
	}
	policy, ok := policies[e.Policy]
	if !ok {
		return nil, restunederrors.New(restunederrors.KindParse, "config.LoadResourceCatalog", "unknown policy "+e.Policy)
	}
	permission, ok := permissions[e.Permission]
	if !ok {
		return nil, restunederrors.New(restunederrors.KindParse, "config.LoadResourceCatalog", "unknown permission "+e.Permission)
	}

	var modes types.DeviceMode
	if len(e.Modes) == 0 {
		modes = types.ModeResume
	}
	for _, m := range e.Modes {
		bit, ok := deviceModes[m]
		if !ok {
			return nil, restunederrors.New(restunederrors.KindParse, "config.LoadResourceCatalog", "unknown device mode "+m)
		}
		modes |= bit
	}

	return &types.ResourceConfig{
		Code:          types.NewResCode(e.ResType, e.ResId),
		Path:          e.Path,
		ApplyScope:    scope,
		Policy:        policy,
		Permission:    permission,
		Modes:         modes,
		HighThreshold: e.HighThreshold,
		LowThreshold:  e.LowThreshold,
		Unit:          e.Unit,
		DefaultValue:  e.DefaultValue,
	}, nil
}
