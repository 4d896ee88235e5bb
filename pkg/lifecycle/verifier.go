// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"github.com/hashicorp/go-multierror"

	restunederrors "github.com/DataDog/restuned/pkg/errors"
	"github.com/DataDog/restuned/pkg/types"
)

// ResourceCatalog is the subset of ResourceRegistry the verifier needs:
// config lookup plus permission/bounds checking off that config.
type ResourceCatalog interface {
	ResourceConfig(code types.ResCode) (*types.ResourceConfig, bool)
}

// Topology is the subset of TargetRegistry the verifier needs to reject
// a request naming an unmapped logical core/cluster/cgroup before it
// ever reaches the CCT.
type Topology interface {
	PhysicalCoreId(logicalClusterId, logicalCoreId int32) (int32, bool)
	PhysicalClusterId(logicalClusterId int32) (int32, bool)
	CgroupCatalogPos(cgroupId int32) (int, bool)
}

// Verifier validates an incoming Request against the resource catalog
// and topology before it is admitted to the RequestQueue, per spec.md
// §4.2 "Validation": opcode, priority range, permission, per-resource
// bounds and logical-to-physical mapping all run here. The device mode
// is not checked here; cct.Table.apply checks it when a write is about
// to be applied. Every
// every per-resource failure is collected rather than short-circuiting
// on the first one, so a caller can see every reason a multi-resource
// request was rejected.
type Verifier struct {
	resources ResourceCatalog
	topology  Topology
}

func NewVerifier(resources ResourceCatalog, topology Topology) *Verifier {
	return &Verifier{resources: resources, topology: topology}
}

// Verify runs every applicable check for req and returns a
// *multierror.Error (nil if req passes) aggregating every violation
// found, so callers can report all of them to the client at once.
func (v *Verifier) Verify(req *types.Request) error {
	var result *multierror.Error

	if err := v.verifyOpcode(req.Type); err != nil {
		result = multierror.Append(result, err)
	}
	if err := v.verifyPriority(req.Priority); err != nil {
		result = multierror.Append(result, err)
	}
	if req.Type == types.ResourceTune && len(req.Resources) == 0 {
		result = multierror.Append(result, restunederrors.New(restunederrors.KindBadArg, "verifier.Verify", "tune with no resources"))
	}

	for i := range req.Resources {
		if err := v.verifyResource(req.Priority, &req.Resources[i]); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if result == nil {
		return nil
	}
	return result
}

func (v *Verifier) verifyOpcode(t types.RequestType) error {
	switch t {
	case types.ResourceTune, types.ResourceUntune, types.SignalTune, types.SignalUntune, types.PropGet:
		return nil
	default:
		return restunederrors.New(restunederrors.KindBadArg, "verifier.verifyOpcode", "unknown request type")
	}
}

func (v *Verifier) verifyPriority(p types.Priority) error {
	if p.IsBucketed() || p == types.HighTransfer || p == types.ServerCleanup {
		return nil
	}
	return restunederrors.New(restunederrors.KindBadArg, "verifier.verifyPriority", "priority out of range")
}

// verifyResource checks one Resource write: the code is registered, the
// requesting priority's implied permission is allowed by the resource's
// config, the value is within [LowThreshold, HighThreshold] when either
// is non-zero, and any scoped logical id the write names resolves to a
// real physical instance.
func (v *Verifier) verifyResource(priority types.Priority, res *types.Resource) error {
	cfg, ok := v.resources.ResourceConfig(res.Code)
	if !ok {
		return restunederrors.New(restunederrors.KindNotFound, "verifier.verifyResource", "unknown resource "+res.Code.String())
	}

	if cfg.Permission == types.PermissionSystem && isThirdParty(priority) {
		return restunederrors.New(restunederrors.KindPermission, "verifier.verifyResource", "third-party caller may not tune system resource "+res.Code.String())
	}

	if cfg.HighThreshold != 0 || cfg.LowThreshold != 0 {
		val := res.ArbitrationValue()
		if val < cfg.LowThreshold || val > cfg.HighThreshold {
			return restunederrors.New(restunederrors.KindBadArg, "verifier.verifyResource", "value out of bounds for "+res.Code.String())
		}
	}

	switch cfg.ApplyScope {
	case types.ApplyCore:
		if _, ok := v.topology.PhysicalCoreId(res.Info.LogicalClusterId, res.Info.LogicalCoreId); !ok {
			return restunederrors.New(restunederrors.KindTopology, "verifier.verifyResource", "unmapped logical core for "+res.Code.String())
		}
	case types.ApplyCluster:
		if _, ok := v.topology.PhysicalClusterId(res.Info.LogicalClusterId); !ok {
			return restunederrors.New(restunederrors.KindTopology, "verifier.verifyResource", "unmapped logical cluster for "+res.Code.String())
		}
	case types.ApplyCgroup:
		if _, ok := v.topology.CgroupCatalogPos(res.Info.CgroupId); !ok {
			return restunederrors.New(restunederrors.KindTopology, "verifier.verifyResource", "unknown cgroup for "+res.Code.String())
		}
	}
	return nil
}

func isThirdParty(p types.Priority) bool {
	return p == types.ThirdPartyHigh || p == types.ThirdPartyLow
}
