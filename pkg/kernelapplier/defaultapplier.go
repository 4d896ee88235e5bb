// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package kernelapplier

import (
	"strconv"
	"strings"

	restunederrors "github.com/DataDog/restuned/pkg/errors"
	"github.com/DataDog/restuned/pkg/types"
)

// PathTopology is the subset of TargetRegistry the default appliers
// need to materialize a resource's path template into a concrete
// sysfs/cgroupfs path.
type PathTopology interface {
	PhysicalCoreId(logicalClusterId, logicalCoreId int32) (int32, bool)
	PhysicalClusterId(logicalClusterId int32) (int32, bool)
	CGroupPath(cgroupId int32) (string, bool)
}

// MaterializePath substitutes a resource's path template markers
// (%core%, %cluster%, %cgroup%) using the write's ResInfo and the
// current topology, per spec.md §3: "path (may contain substitution
// markers for cluster/cgroup/core)".
func MaterializePath(template string, scope types.ApplyScope, info types.ResInfo, topo PathTopology) (string, error) {
	switch scope {
	case types.ApplyGlobal:
		return template, nil
	case types.ApplyCore:
		phys, ok := topo.PhysicalCoreId(info.LogicalClusterId, info.LogicalCoreId)
		if !ok {
			return "", restunederrors.New(restunederrors.KindTopology, "MaterializePath", "unmapped logical core")
		}
		return strings.ReplaceAll(template, "%core%", strconv.Itoa(int(phys))), nil
	case types.ApplyCluster:
		phys, ok := topo.PhysicalClusterId(info.LogicalClusterId)
		if !ok {
			return "", restunederrors.New(restunederrors.KindTopology, "MaterializePath", "unmapped logical cluster")
		}
		return strings.ReplaceAll(template, "%cluster%", strconv.Itoa(int(phys))), nil
	case types.ApplyCgroup:
		path, ok := topo.CGroupPath(info.CgroupId)
		if !ok {
			return "", restunederrors.New(restunederrors.KindTopology, "MaterializePath", "unknown cgroup id")
		}
		return strings.ReplaceAll(template, "%cgroup%", path), nil
	default:
		return template, nil
	}
}

// pathApplier is the default ResourceApplier/Tear pair: write the
// resource's value (or the registered default, on tear) to the
// materialized path.
type pathApplier struct {
	cfg   *types.ResourceConfig
	topo  PathTopology
	ka    KernelApplier
}

// NewDefaultApplier returns the stock ResourceApplier used when a
// resource config does not supply a custom one: it materializes cfg.Path
// against the write's scope and writes Values[0] (single-value
// resources) to it.
func NewDefaultApplier(cfg *types.ResourceConfig, topo PathTopology, ka KernelApplier) types.ResourceApplier {
	return &pathApplier{cfg: cfg, topo: topo, ka: ka}
}

// NewDefaultTear returns the stock ResourceTear counterpart, which
// restores cfg.DefaultValue to the same materialized path.
func NewDefaultTear(cfg *types.ResourceConfig, topo PathTopology, ka KernelApplier) types.ResourceTear {
	return &pathApplier{cfg: cfg, topo: topo, ka: ka}
}

func (p *pathApplier) Apply(r *types.Resource) error {
	path, err := MaterializePath(p.cfg.Path, p.cfg.ApplyScope, r.Info, p.topo)
	if err != nil {
		return err
	}
	if len(r.Values) == 0 {
		return restunederrors.New(restunederrors.KindBadArg, "pathApplier.Apply", "resource has no values")
	}
	return p.ka.WriteKnob(path, strconv.Itoa(int(r.Values[0])))
}

func (p *pathApplier) Tear(r *types.Resource) error {
	path, err := MaterializePath(p.cfg.Path, p.cfg.ApplyScope, r.Info, p.topo)
	if err != nil {
		return err
	}
	return p.ka.WriteKnob(path, strconv.Itoa(int(p.cfg.DefaultValue)))
}

// cgroupMoveApplier implements the "move a PID into a cgroup" resource
// the classifier synthesizes (spec.md §4.3 step 5): Values = [cgroupId,
// pid].
type cgroupMoveApplier struct {
	topo PathTopology
	ka   KernelApplier
}

// NewCgroupMoveApplier returns the applier bound to the well-known
// cgroup-move resource code. It has no meaningful Tear (moving a PID
// back out on untune is not part of the spec's cgroup semantics).
func NewCgroupMoveApplier(topo PathTopology, ka KernelApplier) types.ResourceApplier {
	return &cgroupMoveApplier{topo: topo, ka: ka}
}

func (c *cgroupMoveApplier) Apply(r *types.Resource) error {
	if len(r.Values) < 2 {
		return restunederrors.New(restunederrors.KindBadArg, "cgroupMoveApplier.Apply", "expected [cgroupId, pid]")
	}
	cgroupId := r.Values[0]
	pid := r.Values[1]
	path, ok := c.topo.CGroupPath(cgroupId)
	if !ok {
		return restunederrors.New(restunederrors.KindNotFound, "cgroupMoveApplier.Apply", "unknown cgroup id")
	}
	return c.ka.MoveToCgroup(path+"/cgroup.procs", pid)
}
