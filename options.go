package texstream

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/framelab/texstream/internal/rawcodec"
)

// Config is the engine's required configuration surface. It is validated at
// construction and immutable afterwards; there are no call-site fallbacks.
// The one runtime-adjustable knob is the memory threshold, via
// SetMemoryThreshold.
type Config struct {
	// MaxCachedTextures caps the number of cache entries. Must be > 0.
	MaxCachedTextures int

	// PreloadRadius is how many neighbors on each side of the current
	// frame are preloaded. Must be >= 0; 0 disables preloading.
	PreloadRadius int

	// MemoryThresholdBytes is the resident-byte budget. Must be > 0.
	MemoryThresholdBytes int64
}

// DefaultConfig returns a configuration suitable for a typical viewing
// session.
func DefaultConfig() Config {
	return Config{
		MaxCachedTextures:    64,
		PreloadRadius:        8,
		MemoryThresholdBytes: 256 << 20,
	}
}

func (c Config) validate() error {
	var errs []error
	if c.MaxCachedTextures <= 0 {
		errs = append(errs, fmt.Errorf("MaxCachedTextures must be positive, got %d", c.MaxCachedTextures))
	}
	if c.PreloadRadius < 0 {
		errs = append(errs, fmt.Errorf("PreloadRadius must be non-negative, got %d", c.PreloadRadius))
	}
	if c.MemoryThresholdBytes <= 0 {
		errs = append(errs, fmt.Errorf("MemoryThresholdBytes must be positive, got %d", c.MemoryThresholdBytes))
	}
	return errors.Join(errs...)
}

type options struct {
	logger              *Logger
	metrics             MetricsCollector
	maintenanceInterval time.Duration
	rawCodec            rawcodec.Codec
	completionFn        CompletionFunc
}

// Option configures engine construction behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithMaintenanceInterval sets how often the maintenance cycle re-evaluates
// memory usage and eviction, even absent new completions. This is what
// reclaims memory after SetMemoryThreshold tightens the budget.
// Default: 5s. Values <= 0 keep the default.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maintenanceInterval = d
		}
	}
}

// WithRawCompression retains the host-side re-bind copy of each frame
// zstd-compressed. Budget accounting is unaffected: the threshold models GPU
// residency and always uses the decoded size.
func WithRawCompression() Option {
	return func(o *options) {
		o.rawCodec = rawcodec.Zstd{}
	}
}

// WithCompletionFunc registers an observer for background load outcomes.
// Background failures are otherwise visible only through entry state and
// stats.
func WithCompletionFunc(fn CompletionFunc) Option {
	return func(o *options) {
		o.completionFn = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:              NoopLogger(),
		metrics:             NoopMetricsCollector{},
		maintenanceInterval: 5 * time.Second,
		rawCodec:            rawcodec.Noop{},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}
