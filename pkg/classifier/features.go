// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procFeatureSource gathers a process's raw feature labels from /proc.
// Each field is independently failable — a missing file is a skip, not
// an error (spec.md §4.3 "Classifier feature collection").
type procFeatureSource struct {
	procRoot string
}

func newProcFeatureSource(procRoot string) *procFeatureSource {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &procFeatureSource{procRoot: procRoot}
}

// featureWeights is the repetition weight a label contributes to the
// concatenated feature string, per spec.md §4.3.
var featureWeights = map[string]int{
	"attr":    1,
	"cgroup":  1,
	"cmdline": 5,
	"comm":    5,
	"maps":    2,
	"fd":      1,
	"environ": 1,
	"exe":     5,
	"logs":    1,
}

// Collect reads every labeled /proc feature for pid and returns the
// concatenated, weight-repeated raw text ready for cleanTokens.
func (p *procFeatureSource) Collect(pid int32) string {
	dir := filepath.Join(p.procRoot, strconv.Itoa(int(pid)))

	var sb strings.Builder
	appendWeighted := func(label, value string) {
		if value == "" {
			return
		}
		w := featureWeights[label]
		for i := 0; i < w; i++ {
			sb.WriteString(value)
			sb.WriteByte(' ')
		}
	}

	appendWeighted("attr", readFileQuiet(filepath.Join(dir, "attr", "current")))
	appendWeighted("cgroup", readFileQuiet(filepath.Join(dir, "cgroup")))
	appendWeighted("cmdline", strings.ReplaceAll(readFileQuiet(filepath.Join(dir, "cmdline")), "\x00", " "))
	appendWeighted("comm", readFileQuiet(filepath.Join(dir, "comm")))
	appendWeighted("environ", strings.ReplaceAll(readFileQuiet(filepath.Join(dir, "environ")), "\x00", " "))
	appendWeighted("exe", readLinkQuiet(filepath.Join(dir, "exe")))
	appendWeighted("maps", readMapsQuiet(filepath.Join(dir, "maps")))
	appendWeighted("fd", readFdQuiet(filepath.Join(dir, "fd")))

	return sb.String()
}

// Comm reads /proc/<pid>/comm, trimmed. Returns "" if unreadable.
func (p *procFeatureSource) Comm(pid int32) string {
	return readFileQuiet(filepath.Join(p.procRoot, strconv.Itoa(int(pid)), "comm"))
}

// HasControllingTerminal parses field 7 of /proc/<pid>/stat (tty_nr);
// 0 means no controlling terminal, i.e. a daemon process that should be
// discarded per spec.md §4.3 "Event intake".
func (p *procFeatureSource) HasControllingTerminal(pid int32) bool {
	raw := readFileQuiet(filepath.Join(p.procRoot, strconv.Itoa(int(pid)), "stat"))
	if raw == "" {
		return false
	}
	// comm may itself contain spaces/parens; fields are counted from the
	// closing paren of the comm field onward.
	close := strings.LastIndexByte(raw, ')')
	if close < 0 || close+2 >= len(raw) {
		return false
	}
	fields := strings.Fields(raw[close+2:])
	const ttyField = 4 // state(1) ppid(2) pgrp(3) session(4) tty_nr(5) -> index 4 zero-based after state
	if len(fields) <= ttyField {
		return false
	}
	tty, err := strconv.Atoi(fields[ttyField])
	if err != nil {
		return false
	}
	return tty != 0
}

// Exists reports whether /proc/<pid> is present.
func (p *procFeatureSource) Exists(pid int32) bool {
	_, err := os.Stat(filepath.Join(p.procRoot, strconv.Itoa(int(pid))))
	return err == nil
}

// FindPidByComm scans procRoot for the first process whose comm
// contains targetComm as a substring, mirroring the original
// implementation's fetchPid: a linear /proc scan returning the first
// match. Returns false if no process matches.
func (p *procFeatureSource) FindPidByComm(targetComm string) (int32, bool) {
	entries, err := os.ReadDir(p.procRoot)
	if err != nil {
		return 0, false
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm := readFileQuiet(filepath.Join(p.procRoot, e.Name(), "comm"))
		if comm != "" && strings.Contains(comm, targetComm) {
			return int32(pid), true
		}
	}
	return 0, false
}

func readFileQuiet(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func readLinkQuiet(path string) string {
	target, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	return target
}

func readMapsQuiet(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(b), "\n")
	var sb strings.Builder
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) == 6 {
			sb.WriteString(fields[5])
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func readFdQuiet(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		sb.WriteString(target)
		sb.WriteByte(' ')
	}
	return sb.String()
}
