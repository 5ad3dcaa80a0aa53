package dispatch

import (
	"fmt"
	"math"
	"time"

	"github.com/haulcommand/dispatchd/core/match"
)

// Config tunes wave sizing and offer TTLs. Explicit configuration instead of
// process-wide constants so tests and tenants can override.
type Config struct {
	// WaveTTLSeconds holds the per-wave offer TTL; waves past the end of the
	// slice use the last entry.
	WaveTTLSeconds []int `json:"wave_ttl_seconds"`

	// BaseWaveSize anchors the dynamic wave-size formula.
	BaseWaveSize int `json:"base_wave_size"`
	MinWaveSize  int `json:"min_wave_size"`
	MaxWaveSize  int `json:"max_wave_size"`

	Weights match.ScoreWeights `json:"weights"`
}

// DefaultConfig returns the production wave settings: 3/5/8 minute TTLs and
// wave sizes bounded to [3,25].
func DefaultConfig() Config {
	return Config{
		WaveTTLSeconds: []int{180, 300, 480},
		BaseWaveSize:   5,
		MinWaveSize:    3,
		MaxWaveSize:    25,
		Weights:        match.DefaultScoreWeights(),
	}
}

// SetDefaults fills zero-valued fields with production settings.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if len(c.WaveTTLSeconds) == 0 {
		c.WaveTTLSeconds = d.WaveTTLSeconds
	}
	if c.BaseWaveSize == 0 {
		c.BaseWaveSize = d.BaseWaveSize
	}
	if c.MinWaveSize == 0 {
		c.MinWaveSize = d.MinWaveSize
	}
	if c.MaxWaveSize == 0 {
		c.MaxWaveSize = d.MaxWaveSize
	}
	if c.Weights == (match.ScoreWeights{}) {
		c.Weights = d.Weights
	}
}

// Validate checks that the wave bounds and score weights are coherent.
func (c Config) Validate() error {
	if c.MinWaveSize > c.MaxWaveSize {
		return fmt.Errorf("min_wave_size %d exceeds max_wave_size %d", c.MinWaveSize, c.MaxWaveSize)
	}
	if s := c.Weights.Sum(); math.Abs(s-1) > 1e-9 {
		return fmt.Errorf("score weights sum to %.3f, want 1.0", s)
	}
	return nil
}

// TTL returns the offer TTL for the given 1-based wave number, clamped to
// the last configured value.
func (c Config) TTL(wave int) time.Duration {
	idx := wave - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.WaveTTLSeconds) {
		idx = len(c.WaveTTLSeconds) - 1
	}
	return time.Duration(c.WaveTTLSeconds[idx]) * time.Second
}

// WaveSize computes how many escorts one wave should target. Lower predicted
// fill or lower confidence widens the wave into exploration; confident
// high-fill loads get small, targeted waves.
func (c Config) WaveSize(pFill60m, confidence float64) int {
	spread := int(math.Round(float64(c.BaseWaveSize) + (1-pFill60m)*15 + (1-confidence)*10))
	if spread < c.MinWaveSize {
		return c.MinWaveSize
	}
	if spread > c.MaxWaveSize {
		return c.MaxWaveSize
	}
	return spread
}
