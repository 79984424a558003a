package asyncrt

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// VirtualNumaNodesCount replaces real NUMA topology discovery with the
	// given number of synthetic equal-sized nodes; one CPU executor is created
	// per node either way.
	// Default: 0 (use real topology)
	VirtualNumaNodesCount int

	// WorkGroups is the ordered list of additional scheduling classes. The
	// reserved "main" group is always present; redefining it fails Setup.
	// Default: none
	WorkGroups []WorkGroupOption

	// ProcessorsPerNode overrides the number of processors per CPU executor.
	// Zero sizes each executor by its node's CPU set.
	// Default: 0
	ProcessorsPerNode int

	// IOWorkers is the number of worker goroutines of the I/O executor.
	// Default: 4
	IOWorkers int

	// DisableMaxProcs skips aligning GOMAXPROCS with the CPU quota at Setup.
	// Default: false
	DisableMaxProcs bool
}
