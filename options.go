package asyncrt

import (
	"go.uber.org/zap"

	"github.com/ygrebnov/asyncrt/metrics"
)

// Option configures the runtime. Use Setup(opts...) / SetupRuntime(opts...).
type Option func(*configOptions)

// internal builder state for options assembly.
type configOptions struct {
	cfg           RuntimeConfig
	logger        *zap.Logger
	metrics       metrics.Provider
	profilerStart func()
	profilerStop  func()
}

func newConfigOptions() configOptions {
	return configOptions{
		cfg:     defaultRuntimeConfig(),
		logger:  zap.NewNop(),
		metrics: metrics.NewNoopProvider(),
	}
}

// WithVirtualNumaNodes creates n synthetic equal-sized nodes instead of
// discovering the real NUMA topology (must be > 0).
func WithVirtualNumaNodes(n int) Option {
	return func(co *configOptions) {
		if n <= 0 {
			panic("WithVirtualNumaNodes requires n > 0")
		}
		co.cfg.VirtualNumaNodesCount = n
	}
}

// WithWorkGroup appends a scheduling class. Declaring the reserved "main"
// group fails Setup with ErrWorkGroupExists.
func WithWorkGroup(g WorkGroupOption) Option {
	return func(co *configOptions) { co.cfg.WorkGroups = append(co.cfg.WorkGroups, g) }
}

// WithProcessorsPerNode overrides the processor count of every CPU executor
// (must be > 0). Without it, each executor gets one processor per CPU of its
// node.
func WithProcessorsPerNode(n int) Option {
	return func(co *configOptions) {
		if n <= 0 {
			panic("WithProcessorsPerNode requires n > 0")
		}
		co.cfg.ProcessorsPerNode = n
	}
}

// WithIOWorkers sets the worker count of the I/O executor (must be > 0).
func WithIOWorkers(n int) Option {
	return func(co *configOptions) {
		if n <= 0 {
			panic("WithIOWorkers requires n > 0")
		}
		co.cfg.IOWorkers = n
	}
}

// WithLogger installs a structured logger. The default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(co *configOptions) {
		if l == nil {
			panic("nil logger")
		}
		co.logger = l
	}
}

// WithMetrics installs a metrics provider. The default discards all metrics.
func WithMetrics(p metrics.Provider) Option {
	return func(co *configOptions) {
		if p == nil {
			panic("nil metrics provider")
		}
		co.metrics = p
	}
}

// WithoutMaxProcs skips aligning GOMAXPROCS with the CPU quota at Setup.
func WithoutMaxProcs() Option {
	return func(co *configOptions) { co.cfg.DisableMaxProcs = true }
}

// WithProfiler installs hooks invoked at the Setup/Terminate boundaries.
func WithProfiler(start, stop func()) Option {
	return func(co *configOptions) {
		co.profilerStart = start
		co.profilerStop = stop
	}
}

// WithConfig replaces the builder's configuration wholesale. Options applied
// after it still take effect.
func WithConfig(cfg RuntimeConfig) Option {
	return func(co *configOptions) { co.cfg = cfg }
}
