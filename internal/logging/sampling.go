package logging

import (
	"sort"

	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with one sampler per configured level.
// Levels without an entry, Error and above included, pass through unsampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	levels := make([]zapcore.Level, 0, len(cfg.Levels))
	for lvl := range cfg.Levels {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	cores := make([]zapcore.Core, 0, len(levels)+1)
	cores = append(cores, &levelFilterCore{
		Core: core,
		match: func(l zapcore.Level) bool {
			_, sampled := cfg.Levels[l]
			return !sampled
		},
	})
	for _, lvl := range levels {
		lc := cfg.Levels[lvl]
		only := lvl
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&levelFilterCore{Core: core, match: func(l zapcore.Level) bool { return l == only }},
			cfg.Tick.Duration(),
			lc.Initial,
			lc.Thereafter,
		))
	}

	return zapcore.NewTee(cores...)
}

// levelFilterCore only accepts entries whose level matches.
type levelFilterCore struct {
	zapcore.Core
	match func(zapcore.Level) bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.match(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:  c.Core.With(fields),
		match: c.match,
	}
}
