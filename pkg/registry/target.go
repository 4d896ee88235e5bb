// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package registry

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

// TopologyReader is the subset of the KernelApplier capability
// (spec.md §6) TargetRegistry needs to discover CPU topology.
type TopologyReader interface {
	ListCpuFreqPolicies() ([]string, error)
	ReadCpuCapacity(cpu int) (int32, error)
	ReadKnob(path string) (string, error)
}

// TargetRegistry holds discovered device topology: online core count,
// clusters, the logical<->physical cluster mapping, and the cgroup
// catalog (spec.md §4.4).
type TargetRegistry struct {
	mu sync.RWMutex

	coreCount int
	mode      types.DeviceMode

	logicalToPhysicalCluster map[int32]int32
	physicalClusters         map[int32]*types.ClusterInfo
	clusterCatalogPos        map[int32]int // physical cluster id -> ascending-capacity position

	cgroupRoot       string
	cgroups          []types.CGroupConfig
	cgroupCatalogPos map[int32]int

	mpamGroups map[int32]*types.MpamGroup
	cacheInfo  map[string]*types.CacheInfo
}

// NewTargetRegistry builds an empty registry; callers populate it via
// DiscoverTopology and the Add* methods during init.
func NewTargetRegistry() *TargetRegistry {
	return &TargetRegistry{
		logicalToPhysicalCluster: make(map[int32]int32),
		physicalClusters:         make(map[int32]*types.ClusterInfo),
		clusterCatalogPos:        make(map[int32]int),
		cgroupCatalogPos:         make(map[int32]int),
		mpamGroups:               make(map[int32]*types.MpamGroup),
		cacheInfo:                make(map[string]*types.CacheInfo),
		mode:                     types.ModeResume,
		cgroupRoot:               "/sys/fs/cgroup",
	}
}

// SetCGroupRoot overrides the cgroupfs mount point used by CGroupPath;
// tests point it at a tmpdir.
func (t *TargetRegistry) SetCGroupRoot(root string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cgroupRoot = root
}

// CGroupPath returns the filesystem directory for a registered cgroup
// id, e.g. "/sys/fs/cgroup/focused".
func (t *TargetRegistry) CGroupPath(cgroupId int32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.cgroups {
		if c.ID == cgroupId {
			return t.cgroupRoot + "/" + c.Name, true
		}
	}
	return "", false
}

// SetCoreCount overrides the discovered online core count (used by
// tests and by config when the platform reports it directly).
func (t *TargetRegistry) SetCoreCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.coreCount = n
}

func (t *TargetRegistry) CoreCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.coreCount
}

func (t *TargetRegistry) ClusterCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.physicalClusters)
}

func (t *TargetRegistry) CgroupCatalogCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cgroups)
}

// SetMode updates the current device mode; gates resource application
// in cct.Table.apply.
func (t *TargetRegistry) SetMode(m types.DeviceMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = m
}

func (t *TargetRegistry) CurrentMode() types.DeviceMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// PhysicalCoreId translates a (logical cluster, logical core id) pair
// to a physical core id: startCpu of the cluster plus the 1-indexed
// logical core offset, per spec.md §8 (scenario 6): a cluster with
// StartCpu=4 maps logical core 2 to physical core 5, not 6.
func (t *TargetRegistry) PhysicalCoreId(logicalClusterId, logicalCoreId int32) (int32, bool) {
	physCluster, ok := t.PhysicalClusterId(logicalClusterId)
	if !ok {
		return 0, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	cl, ok := t.physicalClusters[physCluster]
	if !ok {
		return 0, false
	}
	if logicalCoreId <= 0 || logicalCoreId > cl.NumCpus {
		return 0, false
	}
	return cl.StartCpu + logicalCoreId - 1, true
}

func (t *TargetRegistry) PhysicalClusterId(logicalClusterId int32) (int32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	phys, ok := t.logicalToPhysicalCluster[logicalClusterId]
	return phys, ok
}

func (t *TargetRegistry) ClusterCatalogPos(physicalClusterId int32) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.clusterCatalogPos[physicalClusterId]
	return pos, ok
}

func (t *TargetRegistry) CgroupCatalogPos(cgroupId int32) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.cgroupCatalogPos[cgroupId]
	return pos, ok
}

func (t *TargetRegistry) ClusterInfo(physicalClusterId int32) (*types.ClusterInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cl, ok := t.physicalClusters[physicalClusterId]
	return cl, ok
}

func (t *TargetRegistry) ClusterIDs() []int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]int32, 0, len(t.physicalClusters))
	for id := range t.physicalClusters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddCGroup registers one cgroup catalog entry, assigning it the next
// catalog position.
func (t *TargetRegistry) AddCGroup(cfg types.CGroupConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cgroupCatalogPos[cfg.ID] = len(t.cgroups)
	t.cgroups = append(t.cgroups, cfg)
}

func (t *TargetRegistry) CGroups() []types.CGroupConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.CGroupConfig, len(t.cgroups))
	copy(out, t.cgroups)
	return out
}

func (t *TargetRegistry) CGroupByName(name string) (types.CGroupConfig, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.cgroups {
		if c.Name == name {
			return c, true
		}
	}
	return types.CGroupConfig{}, false
}

// AddMpamGroup / AddCacheInfo carry forward the original implementation's
// MPAM-group and cache-topology catalogs as read-only facts (see
// SPEC_FULL.md Supplemented Features) — not consulted by CCT arbitration.
func (t *TargetRegistry) AddMpamGroup(g *types.MpamGroup) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mpamGroups[g.ID] = g
}

func (t *TargetRegistry) MpamGroup(id int32) (*types.MpamGroup, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.mpamGroups[id]
	return g, ok
}

func (t *TargetRegistry) AddCacheInfo(c *types.CacheInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cacheInfo[c.CacheType] = c
}

func (t *TargetRegistry) CacheInfo(cacheType string) (*types.CacheInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.cacheInfo[cacheType]
	return c, ok
}

var clusterIDFromPolicyDir = regexp.MustCompile(`policy(\d+)$`)

// DiscoverTopology runs the three-tier strategy from spec.md §4.4:
// cpufreq policy directories first, cluster_id grouping as fallback,
// and a single homogeneous cluster if neither yields anything.
func (t *TargetRegistry) DiscoverTopology(reader TopologyReader) error {
	clusters, err := discoverByPolicy(reader)
	if err != nil {
		log.Warnf("topology: cpufreq policy discovery failed: %v", err)
	}
	if len(clusters) == 0 {
		clusters, err = discoverByClusterId(reader)
		if err != nil {
			log.Warnf("topology: cluster_id discovery failed: %v", err)
		}
	}
	if len(clusters) == 0 {
		clusters = homogeneousFallback(t.CoreCount())
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Capacity < clusters[j].Capacity })

	t.mu.Lock()
	defer t.mu.Unlock()
	t.physicalClusters = make(map[int32]*types.ClusterInfo, len(clusters))
	t.logicalToPhysicalCluster = make(map[int32]int32, len(clusters))
	t.clusterCatalogPos = make(map[int32]int, len(clusters))
	for logical, cl := range clusters {
		clCopy := cl
		t.physicalClusters[cl.PhysicalID] = &clCopy
		t.logicalToPhysicalCluster[int32(logical)] = cl.PhysicalID
		t.clusterCatalogPos[cl.PhysicalID] = logical
	}
	return nil
}

// discoverByPolicy treats each cpufreq policy directory as a cluster:
// physical id = the policy's numeric suffix, startCpu = min(related_cpus),
// capacity = readCpuCapacity(startCpu).
func discoverByPolicy(reader TopologyReader) ([]types.ClusterInfo, error) {
	policies, err := reader.ListCpuFreqPolicies()
	if err != nil {
		return nil, err
	}
	var clusters []types.ClusterInfo
	for _, p := range policies {
		m := clusterIDFromPolicyDir.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		physicalID, _ := strconv.Atoi(m[1])
		related, err := reader.ReadKnob(filepath.Join(p, "related_cpus"))
		if err != nil {
			continue
		}
		cpus := parseIntList(related)
		if len(cpus) == 0 {
			continue
		}
		startCpu := cpus[0]
		for _, c := range cpus {
			if c < startCpu {
				startCpu = c
			}
		}
		cap, err := reader.ReadCpuCapacity(startCpu)
		if err != nil {
			cap = 0
		}
		clusters = append(clusters, types.ClusterInfo{
			PhysicalID: int32(physicalID),
			StartCpu:   int32(startCpu),
			NumCpus:    int32(len(cpus)),
			Capacity:   cap,
		})
	}
	return clusters, nil
}

// discoverByClusterId walks /sys/devices/system/cpu/cpu*/topology/cluster_id,
// grouping CPUs by cluster_id.
func discoverByClusterId(reader TopologyReader) ([]types.ClusterInfo, error) {
	entries, err := os.ReadDir("/sys/devices/system/cpu")
	if err != nil {
		return nil, err
	}
	cpuRe := regexp.MustCompile(`^cpu(\d+)$`)
	byCluster := make(map[int][]int)
	for _, e := range entries {
		m := cpuRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		cpu, _ := strconv.Atoi(m[1])
		raw, err := reader.ReadKnob(filepath.Join(e.Name(), "topology", "cluster_id"))
		if err != nil {
			continue
		}
		clusterID, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		byCluster[clusterID] = append(byCluster[clusterID], cpu)
	}
	var clusters []types.ClusterInfo
	for id, cpus := range byCluster {
		sort.Ints(cpus)
		cap, err := reader.ReadCpuCapacity(cpus[0])
		if err != nil {
			cap = 0
		}
		clusters = append(clusters, types.ClusterInfo{
			PhysicalID: int32(id),
			StartCpu:   int32(cpus[0]),
			NumCpus:    int32(len(cpus)),
			Capacity:   cap,
		})
	}
	return clusters, nil
}

// homogeneousFallback treats the whole system as a single cluster:
// logical core == physical core.
func homogeneousFallback(coreCount int) []types.ClusterInfo {
	if coreCount <= 0 {
		coreCount = 1
	}
	return []types.ClusterInfo{{PhysicalID: 0, StartCpu: 0, NumCpus: int32(coreCount), Capacity: 1}}
}

func parseIntList(s string) []int {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if strings.Contains(f, "-") {
			parts := strings.SplitN(f, "-", 2)
			lo, err1 := strconv.Atoi(parts[0])
			hi, err2 := strconv.Atoi(parts[1])
			if err1 == nil && err2 == nil {
				for v := lo; v <= hi; v++ {
					out = append(out, v)
				}
			}
			continue
		}
		if v, err := strconv.Atoi(strings.TrimSpace(f)); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// ReadOnlineCpuCount reads /sys/devices/system/cpu/online and returns
// the count of online CPUs. Nothing in the tree feeds its result into
// SetCoreCount.
func ReadOnlineCpuCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, sc.Err()
	}
	cpus := parseIntList(sc.Text())
	return len(cpus), nil
}
