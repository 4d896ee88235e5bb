// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package cct

import "github.com/DataDog/restuned/pkg/types"

// ResourceCatalog is the subset of ResourceRegistry the CCT depends on.
// Kept as a narrow interface so cct can be unit tested without the
// concrete registry package.
type ResourceCatalog interface {
	ResourceConfig(code types.ResCode) (*types.ResourceConfig, bool)
	TotalResources() int
	ResourceIndex(code types.ResCode) (int, bool)
}

// Topology is the subset of TargetRegistry the CCT depends on for
// logical-to-physical translation and catalog sizing.
type Topology interface {
	CoreCount() int
	ClusterCount() int
	CgroupCatalogCount() int
	PhysicalCoreId(logicalClusterId, logicalCoreId int32) (int32, bool)
	PhysicalClusterId(logicalClusterId int32) (int32, bool)
	ClusterCatalogPos(physicalClusterId int32) (int, bool)
	CgroupCatalogPos(cgroupId int32) (int, bool)
	CurrentMode() types.DeviceMode
}
