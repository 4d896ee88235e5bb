// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package kernelapplier

import "strings"

// TopologyAdapter implements registry.TopologyReader over a *Linux
// applier, resolving the policy-relative paths ListCpuFreqPolicies
// returns back to absolute sysfs paths before delegating to ReadKnob.
// cluster_id lookups (already absolute-ish, relative to CpuRoot) are
// resolved the same way.
type TopologyAdapter struct {
	Linux *Linux
}

func NewTopologyAdapter(l *Linux) *TopologyAdapter {
	return &TopologyAdapter{Linux: l}
}

func (a *TopologyAdapter) ListCpuFreqPolicies() ([]string, error) {
	return a.Linux.ListCpuFreqPolicies()
}

func (a *TopologyAdapter) ReadCpuCapacity(cpu int) (int32, error) {
	return a.Linux.ReadCpuCapacity(cpu)
}

// ReadKnob accepts either a cpufreq-policy-relative path
// ("policy0/related_cpus") or a cpu-root-relative path
// ("cpu0/topology/cluster_id") and resolves whichever applies before
// delegating to the underlying sysfs read.
func (a *TopologyAdapter) ReadKnob(path string) (string, error) {
	if strings.HasPrefix(path, "policy") {
		return a.Linux.ReadKnob(a.Linux.ResolveCpuFreqPath(path))
	}
	return a.Linux.ReadKnob(a.Linux.CpuRoot + "/" + path)
}
