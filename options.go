package memscan

import "github.com/rs/zerolog"

// EngineOption configures a ProcessHandle, RegionMapper, or Scanner at
// construction time. The distilled spec assumes these are hardcoded; a
// real library exposes them, following the functional-options idiom.
type EngineOption func(*engineConfig)

type engineConfig struct {
	log               zerolog.Logger
	maxMappableRegion uint64
}

// defaultMaxMappableRegion guards against accidentally materializing a
// pathologically large region (e.g. a misreported reserved range) into a
// local buffer. It is generous enough for any realistic committed region.
const defaultMaxMappableRegion = 1 << 30 // 1 GiB

func newEngineConfig(opts []EngineOption) engineConfig {
	cfg := engineConfig{
		log:               zerolog.Nop(),
		maxMappableRegion: defaultMaxMappableRegion,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger attaches a structured logger. The engine is silent
// (zerolog.Nop()) unless this option is passed.
func WithLogger(log zerolog.Logger) EngineOption {
	return func(c *engineConfig) { c.log = log }
}

// WithMaxMappableRegion overrides the guard on how large a single region
// map_region will materialize into a local buffer.
func WithMaxMappableRegion(bytes uint64) EngineOption {
	return func(c *engineConfig) { c.maxMappableRegion = bytes }
}
