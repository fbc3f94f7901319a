package flowgrid

import "log/slog"

// DefaultCacheBlocks is the number of raster blocks a managed raster keeps
// resident. 64 blocks of 256×256 float64 cells is 32 MiB per raster, which
// routing workloads have settled on as a good trade between memory and
// re-read churn.
const DefaultCacheBlocks = 64

type options struct {
	cacheBlocks int
	logger      *slog.Logger
}

// Option configures a managed raster at open time.
type Option func(*options)

func defaultOptions() options {
	return options{
		cacheBlocks: DefaultCacheBlocks,
		logger:      noopLogger,
	}
}

// WithCacheBlocks overrides the number of resident blocks. Values below 1
// are ignored.
func WithCacheBlocks(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.cacheBlocks = n
		}
	}
}

// WithLogger attaches a structured logger. The raster logs block loads,
// evictions, and flushes at debug level and flush failures during Close at
// error level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
