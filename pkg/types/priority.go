// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package types

// Priority totally orders requests competing for the same resource
// bucket. Smaller numeric value is stronger (more preferred).
type Priority int8

const (
	// SystemHigh is the strongest priority available to ordinary
	// clients.
	SystemHigh Priority = iota
	SystemLow
	ThirdPartyHigh
	ThirdPartyLow

	// NumPriorities is the count of client-facing priority levels;
	// this is the "4" used throughout the CCT's secondary indexing.
	NumPriorities = int(ThirdPartyLow) + 1
)

const (
	// HighTransfer is stronger than SystemHigh; used only for
	// internally synthesized untunes (timer fire, classifier
	// focus-change and app close) so they are serviced ahead of any
	// client tune. It must never appear as a secondary-index bucket.
	HighTransfer Priority = -1

	// ServerCleanup is the strongest priority in the system, used for
	// the untunes the GC synthesizes for requests whose client died.
	ServerCleanup Priority = -2

	// NoPriority marks a resource's currentlyAppliedPriority slot
	// when nothing is applied (default value in effect).
	NoPriority Priority = -1
)

// IsBucketed reports whether p indexes a real CCT priority bucket
// (0..NumPriorities-1). HighTransfer and ServerCleanup never do — they
// are transport-level priorities, resolved to an ordinary bucket
// priority before arbitration, or bypass arbitration buckets entirely.
func (p Priority) IsBucketed() bool {
	return p >= SystemHigh && int(p) < NumPriorities
}

func (p Priority) String() string {
	switch p {
	case SystemHigh:
		return "SYSTEM_HIGH"
	case SystemLow:
		return "SYSTEM_LOW"
	case ThirdPartyHigh:
		return "THIRD_PARTY_HIGH"
	case ThirdPartyLow:
		return "THIRD_PARTY_LOW"
	case HighTransfer:
		return "HIGH_TRANSFER"
	case ServerCleanup:
		return "SERVER_CLEANUP"
	default:
		return "UNKNOWN_PRIORITY"
	}
}
