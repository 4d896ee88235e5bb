// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package persistence implements the defaults-restore CSV file from
// spec.md §6: "<path>,<defaultIntegerValue>" lines, replayed on start
// and re-emitted then deleted on normal shutdown.
package persistence

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/DataDog/restuned/pkg/log"
)

// KnobWriter is the narrow KernelApplier slice persistence needs.
type KnobWriter interface {
	WriteKnob(path, value string) error
}

// Cache holds the in-memory path->default-value map, filled only
// through Record. Nothing else in the tree calls Record: the
// ResourceRegistry does not read defaults for the paths it knows, so
// the Cache an Engine builds stays empty unless a caller records into it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]int32
	order   []string
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]int32)}
}

// Record stores the first-seen default value for path. Subsequent
// calls for the same path are no-ops: the recorded default must be the
// value read from the kernel before restuned ever wrote to it.
func (c *Cache) Record(path string, value int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[path]; exists {
		return
	}
	c.entries[path] = value
	c.order = append(c.order, path)
}

// Get returns the recorded default for path, if any.
func (c *Cache) Get(path string) (int32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[path]
	return v, ok
}

// Snapshot returns a stable-ordered copy of every recorded default.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, Entry{Path: p, Value: c.entries[p]})
	}
	return out
}

type Entry struct {
	Path  string
	Value int32
}

// LoadAndReplay reads csvPath (if present), writes every
// "<path>,<value>" line back to the kernel via writer, then deletes the
// file — spec.md §6: "On start, if present, every line is replayed to
// the kernel to restore safe state, then the file is deleted."
func LoadAndReplay(csvPath string, writer KnobWriter) error {
	f, err := os.Open(csvPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	sc := bufio.NewScanner(f)
	var replayErr error
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			log.Warnf("persistence: malformed line %q, skipping", line)
			continue
		}
		path := parts[0]
		if _, err := strconv.ParseInt(parts[1], 10, 32); err != nil {
			log.Warnf("persistence: malformed value %q for %s, skipping", parts[1], path)
			continue
		}
		if err := writer.WriteKnob(path, parts[1]); err != nil {
			log.Errorf("persistence: replay failed for %s: %v", path, err)
			replayErr = err
		}
	}
	f.Close()
	if err := os.Remove(csvPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return replayErr
}

// Emit writes the cache's current contents to csvPath.
func (c *Cache) Emit(csvPath string) error {
	f, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range c.Snapshot() {
		if _, err := fmt.Fprintf(w, "%s,%d\n", e.Path, e.Value); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Shutdown implements spec.md §6's normal-shutdown sequence: re-emit
// the CSV from the in-memory cache, replay every default value back to
// the kernel, then delete the file once restore has completed.
func (c *Cache) Shutdown(csvPath string, writer KnobWriter) error {
	if err := c.Emit(csvPath); err != nil {
		return err
	}
	for _, e := range c.Snapshot() {
		if err := writer.WriteKnob(e.Path, strconv.Itoa(int(e.Value))); err != nil {
			log.Errorf("persistence: shutdown restore failed for %s: %v", e.Path, err)
		}
	}
	return os.Remove(csvPath)
}
