//go:build !linux

package topology

func discoverNodes() []Node { return nil }

// PinThread is a no-op on platforms without thread affinity support.
func PinThread(_ []int) error { return nil }

// ThreadID returns 0 on platforms without a stable thread identifier.
func ThreadID() int { return 0 }
