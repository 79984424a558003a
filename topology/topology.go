// Package topology enumerates NUMA node to CPU-set mappings and provides
// best-effort thread placement for the runtime's processors.
//
// On Linux the node layout is read from sysfs and threads are pinned with
// sched_setaffinity. Elsewhere the machine is reported as a single node and
// pinning is a no-op.
package topology

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Node describes one NUMA node and the CPUs that belong to it.
type Node struct {
	ID   int
	CPUs []int
}

// Nodes returns the machine's NUMA nodes. It never returns an empty slice:
// when the topology cannot be discovered, a single node covering all CPUs is
// reported.
func Nodes() []Node {
	if nodes := discoverNodes(); len(nodes) > 0 {
		return nodes
	}
	return []Node{{ID: 0, CPUs: allCPUs()}}
}

// VirtualNodes splits the machine's CPUs into count synthetic equal-sized
// nodes. When count exceeds the CPU count, nodes share CPUs round-robin so
// every node stays non-empty.
func VirtualNodes(count int) []Node {
	if count <= 0 {
		return Nodes()
	}
	cpus := allCPUs()
	nodes := make([]Node, count)
	if count > len(cpus) {
		for i := range nodes {
			nodes[i] = Node{ID: i, CPUs: []int{cpus[i%len(cpus)]}}
		}
		return nodes
	}
	per := len(cpus) / count
	rem := len(cpus) % count
	next := 0
	for i := range nodes {
		n := per
		if i < rem {
			n++
		}
		nodes[i] = Node{ID: i, CPUs: cpus[next : next+n]}
		next += n
	}
	return nodes
}

func allCPUs() []int {
	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}

// parseCPUList parses the kernel cpulist format, e.g. "0-3,8-11,16".
func parseCPUList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var cpus []int
	for _, part := range strings.Split(s, ",") {
		lo, hi, found := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("cpulist %q: %w", s, err)
		}
		last := first
		if found {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("cpulist %q: %w", s, err)
			}
		}
		if last < first {
			return nil, fmt.Errorf("cpulist %q: inverted range", s)
		}
		for cpu := first; cpu <= last; cpu++ {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}
