package intel

// HardFillWeights weight the penalty terms of the hard-fill risk score.
type HardFillWeights struct {
	LeadTime    float64 `json:"lead_time"`
	Supply      float64 `json:"supply"`
	Rate        float64 `json:"rate"`
	Complexity  float64 `json:"complexity"`
	BrokerTrust float64 `json:"broker_trust"`
}

// Config tunes the estimator. Defaults mirror the production constants; the
// struct exists so tests and future tenants can override them without
// touching globals.
type Config struct {
	// Global prior stage rates used when a load's bucket has no history.
	DefaultOfferRate  float64 `json:"default_offer_rate"`
	DefaultViewRate   float64 `json:"default_view_rate"`
	DefaultAcceptRate float64 `json:"default_accept_rate"`

	HardFill HardFillWeights `json:"hard_fill"`

	// SigmoidSteepness shapes the hard-fill risk curve around its 0.5 center.
	SigmoidSteepness float64 `json:"sigmoid_steepness"`

	// FreshnessDecayRate controls how fast confidence decays per elapsed hour.
	FreshnessDecayRate float64 `json:"freshness_decay_rate"`

	// DefaultBatchSize bounds one refresh invocation.
	DefaultBatchSize int `json:"default_batch_size"`
}

// DefaultConfig returns the production estimator settings.
func DefaultConfig() Config {
	return Config{
		DefaultOfferRate:  0.75,
		DefaultViewRate:   0.60,
		DefaultAcceptRate: 0.40,
		HardFill: HardFillWeights{
			LeadTime:    0.30,
			Supply:      0.25,
			Rate:        0.20,
			Complexity:  0.15,
			BrokerTrust: 0.10,
		},
		SigmoidSteepness:   6,
		FreshnessDecayRate: 0.1,
		DefaultBatchSize:   100,
	}
}

// SetDefaults fills zero-valued fields with production settings.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.DefaultOfferRate == 0 {
		c.DefaultOfferRate = d.DefaultOfferRate
	}
	if c.DefaultViewRate == 0 {
		c.DefaultViewRate = d.DefaultViewRate
	}
	if c.DefaultAcceptRate == 0 {
		c.DefaultAcceptRate = d.DefaultAcceptRate
	}
	if c.HardFill == (HardFillWeights{}) {
		c.HardFill = d.HardFill
	}
	if c.SigmoidSteepness == 0 {
		c.SigmoidSteepness = d.SigmoidSteepness
	}
	if c.FreshnessDecayRate == 0 {
		c.FreshnessDecayRate = d.FreshnessDecayRate
	}
	if c.DefaultBatchSize == 0 {
		c.DefaultBatchSize = d.DefaultBatchSize
	}
}
