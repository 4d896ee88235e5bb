// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import (
	"os"
	"strings"
	"sync"

	restunederrors "github.com/DataDog/restuned/pkg/errors"
)

// FilterList is the allow-list/block-list pair loaded once at init
// (spec.md §4.3/§6 "Filter lists"): an allow-list, when present, takes
// precedence over a block-list entirely. appClose events bypass
// filtering unconditionally.
type FilterList struct {
	mu        sync.RWMutex
	allowList map[string]bool // nil when no allow-list is configured
	blockList map[string]bool
}

// LoadFilterList reads allowPath and blockPath (either may be empty,
// meaning "not configured"). Per spec.md: "either allow-list XOR
// block-list" — if both are present, the allow-list wins and the
// block-list is ignored, consistent with the open question in spec.md
// §9 ("Overlapping presence is not well-defined").
func LoadFilterList(allowPath, blockPath string) (*FilterList, error) {
	fl := &FilterList{}
	if allowPath != "" {
		tokens, err := readTokenFile(allowPath)
		if err != nil {
			return nil, restunederrors.Wrap(restunederrors.KindParse, "classifier.LoadFilterList", "failed to load allow list", err)
		}
		fl.allowList = tokens
		return fl, nil
	}
	if blockPath != "" {
		tokens, err := readTokenFile(blockPath)
		if err != nil {
			return nil, restunederrors.Wrap(restunederrors.KindParse, "classifier.LoadFilterList", "failed to load block list", err)
		}
		fl.blockList = tokens
	}
	return fl, nil
}

// Reload re-reads both files in place, for the fsnotify-driven hot
// reload path.
func (fl *FilterList) Reload(allowPath, blockPath string) error {
	fresh, err := LoadFilterList(allowPath, blockPath)
	if err != nil {
		return err
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.allowList = fresh.allowList
	fl.blockList = fresh.blockList
	return nil
}

// Allowed reports whether comm may proceed through the classifier
// pipeline.
func (fl *FilterList) Allowed(comm string) bool {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if fl.allowList != nil {
		return fl.allowList[comm]
	}
	if fl.blockList != nil {
		return !fl.blockList[comm]
	}
	return true
}

func readTokenFile(path string) (map[string]bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, line := range strings.Split(string(raw), "\n") {
		for _, tok := range strings.Split(line, ",") {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				out[tok] = true
			}
		}
	}
	return out, nil
}
