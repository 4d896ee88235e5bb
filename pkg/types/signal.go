// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package types

// SignalId/SignalType are packed the same way the original source packs
// them: a signal is identified by (id, type) so the same numeric id can
// carry distinct flavors (e.g. open vs close) without a second lookup
// table.
type SignalId uint32
type SignalType uint32

// ResourceTemplate is a partially pre-filled Resource used inside a
// Signal: every field is fixed except whatever the expansion call site
// fills in (e.g. the target pid for a cgroup-move template).
type ResourceTemplate struct {
	Code   ResCode
	Info   ResInfo
	Values []int32
}

// Signal is a named bundle of resources with a default timeout,
// materialized into a multi-resource tune request on expansion.
type Signal struct {
	Id          SignalId
	Type        SignalType
	TimeoutMs   int64
	Resources   []ResourceTemplate
	Derivatives []SignalId // child signal ids, expanded alongside the parent
}

// ProcEventKind classifies a Linux process-lifecycle event.
type ProcEventKind uint8

const (
	ProcEventIgnore ProcEventKind = iota
	ProcEventAppOpen
	ProcEventAppClose
)

// ProcEvent is a single process-lifecycle notification from the
// netlink proc connector.
type ProcEvent struct {
	Pid  int32
	Tgid int32
	Kind ProcEventKind
}

// WorkloadClass is the Contextual Classifier's output label.
type WorkloadClass uint8

const (
	ClassIgnore WorkloadClass = iota
	ClassApp
	ClassBrowser
	ClassGame
	ClassMedia
)

func (c WorkloadClass) String() string {
	switch c {
	case ClassApp:
		return "app"
	case ClassBrowser:
		return "browser"
	case ClassGame:
		return "game"
	case ClassMedia:
		return "media"
	default:
		return "ignore"
	}
}
