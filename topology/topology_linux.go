//go:build linux

package topology

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const sysNodePath = "/sys/devices/system/node"

func discoverNodes() []Node {
	entries, err := os.ReadDir(sysNodePath)
	if err != nil {
		return nil
	}
	var nodes []Node
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		id, err := strconv.Atoi(name[len("node"):])
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(sysNodePath, name, "cpulist"))
		if err != nil {
			continue
		}
		cpus, err := parseCPUList(string(raw))
		if err != nil || len(cpus) == 0 {
			continue
		}
		nodes = append(nodes, Node{ID: id, CPUs: cpus})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// PinThread restricts the calling OS thread to the given CPUs. The caller is
// expected to hold runtime.LockOSThread for the affinity to stay meaningful.
func PinThread(cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	var set unix.CPUSet
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(0, &set)
}

// ThreadID returns the OS identifier of the calling thread.
func ThreadID() int {
	return unix.Gettid()
}
