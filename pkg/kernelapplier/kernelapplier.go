// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package kernelapplier implements the KernelApplier capability
// (spec.md §6): the single pure side-effect sink that reads and writes
// kernel-exposed knobs, moves PIDs between cgroups, and restarts named
// services. Only the composition root (pkg/engine and the run
// subcommand) constructs and holds the concrete *Linux; the other
// packages depend on the KernelApplier interface or a narrower slice of
// it, so their tests inject a Fake.
package kernelapplier

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// KernelApplier is the capability contract from spec.md §6.
type KernelApplier interface {
	ReadKnob(path string) (string, error)
	WriteKnob(path, value string) error
	MoveToCgroup(cgroupPath string, pid int32) error
	RestartService(name string) error
	ListCpuFreqPolicies() ([]string, error)
	ReadCpuCapacity(cpu int) (int32, error)
	Mkdirp(path string, mode os.FileMode) error
}

// Linux is the real KernelApplier: direct sysfs/cgroupfs I/O.
type Linux struct {
	// CpuFreqRoot defaults to /sys/devices/system/cpu/cpufreq; tests
	// point it at a tmpdir.
	CpuFreqRoot string
	// CpuRoot defaults to /sys/devices/system/cpu.
	CpuRoot string
}

// NewLinux builds a Linux applier rooted at the real sysfs paths.
func NewLinux() *Linux {
	return &Linux{
		CpuFreqRoot: "/sys/devices/system/cpu/cpufreq",
		CpuRoot:     "/sys/devices/system/cpu",
	}
}

func (l *Linux) ReadKnob(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// WriteKnob writes value to path. Kernel I/O errors are the caller's to
// log-and-continue per spec.md §4.1/§7 — this function never panics and
// never retries.
func (l *Linux) WriteKnob(path, value string) error {
	return os.WriteFile(path, []byte(value), 0644)
}

// MoveToCgroup writes pid to the control file at cgroupPath; callers
// pass the full file path (cgroup.procs, or cgroup.threads for threaded
// cgroups).
func (l *Linux) MoveToCgroup(cgroupPath string, pid int32) error {
	return os.WriteFile(cgroupPath, []byte(strconv.Itoa(int(pid))), 0644)
}

// RestartService shells out to systemctl restart <name>, matching the
// one external-service-control primitive the original exposes.
func (l *Linux) RestartService(name string) error {
	cmd := exec.Command("systemctl", "restart", name)
	return cmd.Run()
}

// ListCpuFreqPolicies globs policy* directories under CpuFreqRoot,
// returning paths relative to CpuFreqRoot so callers can join
// sub-knobs (e.g. "policy0/related_cpus") without hardcoding the root.
func (l *Linux) ListCpuFreqPolicies() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.CpuFreqRoot, "policy*"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(l.CpuFreqRoot, m)
		if err != nil {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

// ReadCpuCapacity reads /sys/devices/system/cpu/cpu<N>/cpu_capacity.
func (l *Linux) ReadCpuCapacity(cpu int) (int32, error) {
	path := filepath.Join(l.CpuRoot, fmt.Sprintf("cpu%d", cpu), "cpu_capacity")
	raw, err := l.ReadKnob(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func (l *Linux) Mkdirp(path string, mode os.FileMode) error {
	err := os.Mkdir(path, mode)
	if os.IsExist(err) {
		return nil
	}
	return err
}

// ResolveCpuFreqPath joins rel, a path relative to CpuFreqRoot as
// returned by ListCpuFreqPolicies, back against CpuFreqRoot;
// TopologyAdapter.ReadKnob uses it during registry discovery.
func (l *Linux) ResolveCpuFreqPath(rel string) string {
	return filepath.Join(l.CpuFreqRoot, rel)
}
