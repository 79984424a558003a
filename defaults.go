package asyncrt

// defaultRuntimeConfig centralizes default values for RuntimeConfig.
// These defaults seed the options builder that Setup starts from.
func defaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		VirtualNumaNodesCount: 0, // real NUMA topology
		ProcessorsPerNode:     0, // one processor per CPU of the node
		IOWorkers:             4,
		DisableMaxProcs:       false,
	}
}

// validateRuntimeConfig performs lightweight invariant checks on the
// assembled configuration; work-group validation happens in buildWorkGroups.
func validateRuntimeConfig(cfg *RuntimeConfig) error {
	if cfg.VirtualNumaNodesCount < 0 || cfg.ProcessorsPerNode < 0 || cfg.IOWorkers < 0 {
		return ErrInvalidConfig
	}
	return nil
}
