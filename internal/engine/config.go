package engine

// Config carries every tuning knob for one analysis run. There is no
// process-wide settings state: callers pass a Config into Analyze and the
// detectors receive the values they need from it.
//
// The defaults are calibrated so that the canonical layering scenario
// (two mules routing through one collector and back) scores MEDIUM:
// the fan thresholds sit at 3 distinct counterparties, matching the
// "received from 3+ different accounts" rule the heuristic grew out of.
type Config struct {
	// Similarity clustering
	SimilarityTolerance float64 // relative amount tolerance, e.g. 0.03 = ±3%
	MinClusterSize      int     // smallest cluster that raises similar_amounts

	// Fan patterns
	FanInThreshold  int // unique senders at one account to raise high_sender_diversity
	FanOutThreshold int // unique receivers at one account to raise high_receiver_diversity

	// Cycle enumeration
	MaxCycleLength int // rings longer than this still set the flag but are not listed

	// Score weights. The sum may exceed 1; the final score is clamped.
	CycleWeight      float64
	SimilarityWeight float64 // scaled by largest cluster size relative to batch size
	FanInWeight      float64
	FanOutWeight     float64
	FanWeightCap     float64 // combined ceiling for the two fan contributions

	// Score-to-level cutoffs: score < MediumCutoff is LOW,
	// score >= HighCutoff is HIGH, everything between is MEDIUM.
	MediumCutoff float64
	HighCutoff   float64

	// IncludeAccountBreakdown adds the per-account section to the
	// assessment for analyst drill-down. Off by default.
	IncludeAccountBreakdown bool
}

// DefaultConfig returns the documented default tuning.
func DefaultConfig() Config {
	return Config{
		SimilarityTolerance: 0.03,
		MinClusterSize:      3,
		FanInThreshold:      3,
		FanOutThreshold:     3,
		MaxCycleLength:      8,
		CycleWeight:         0.4,
		SimilarityWeight:    0.3,
		FanInWeight:         0.3,
		FanOutWeight:        0.3,
		FanWeightCap:        0.3,
		MediumCutoff:        0.4,
		HighCutoff:          0.7,
	}
}

// Validate checks every tuning value and returns a ConfigurationError
// naming the first offending parameter. Called before any computation.
func (c Config) Validate() error {
	if c.SimilarityTolerance < 0 || c.SimilarityTolerance >= 1 {
		return &ConfigurationError{Param: "similarity_tolerance", Reason: "must be in [0, 1)"}
	}
	if c.MinClusterSize < 2 {
		return &ConfigurationError{Param: "min_cluster_size", Reason: "must be at least 2"}
	}
	if c.FanInThreshold < 1 {
		return &ConfigurationError{Param: "fan_in_threshold", Reason: "must be at least 1"}
	}
	if c.FanOutThreshold < 1 {
		return &ConfigurationError{Param: "fan_out_threshold", Reason: "must be at least 1"}
	}
	if c.MaxCycleLength < 2 {
		return &ConfigurationError{Param: "max_cycle_length", Reason: "must be at least 2 (the minimal detectable ring)"}
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"cycle_weight", c.CycleWeight},
		{"similarity_weight", c.SimilarityWeight},
		{"fan_in_weight", c.FanInWeight},
		{"fan_out_weight", c.FanOutWeight},
		{"fan_weight_cap", c.FanWeightCap},
	} {
		if w.value < 0 || w.value > 1 {
			return &ConfigurationError{Param: w.name, Reason: "must be in [0, 1]"}
		}
	}
	if c.MediumCutoff < 0 || c.MediumCutoff > 1 {
		return &ConfigurationError{Param: "medium_cutoff", Reason: "must be in [0, 1]"}
	}
	if c.HighCutoff < 0 || c.HighCutoff > 1 {
		return &ConfigurationError{Param: "high_cutoff", Reason: "must be in [0, 1]"}
	}
	if c.MediumCutoff >= c.HighCutoff {
		return &ConfigurationError{Param: "medium_cutoff", Reason: "must be strictly below high_cutoff"}
	}
	return nil
}
