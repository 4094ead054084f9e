package engine

import (
	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Fan Pattern Detector
//
// Flags collection points and dispersal points. An account receiving
// from many distinct senders is the classic mule profile (fan-in); an
// account paying out to many distinct receivers is layering fan-out.
// Thresholds arrive through Config — there is no hard-coded tuning.

// FanResult is the batch-level fan-pattern verdict.
type FanResult struct {
	SenderDiversity    bool // some account's unique senders reached the fan-in threshold
	ReceiverDiversity  bool // some account's unique receivers reached the fan-out threshold
	MaxUniqueSenders   int
	MaxUniqueReceivers int
}

// DetectFanPatterns scans the per-account metrics against the thresholds.
func DetectFanPatterns(metrics map[string]models.AccountMetrics, cfg Config) FanResult {
	var result FanResult
	for _, m := range metrics {
		if m.UniqueSenders > result.MaxUniqueSenders {
			result.MaxUniqueSenders = m.UniqueSenders
		}
		if m.UniqueReceivers > result.MaxUniqueReceivers {
			result.MaxUniqueReceivers = m.UniqueReceivers
		}
	}
	result.SenderDiversity = result.MaxUniqueSenders >= cfg.FanInThreshold
	result.ReceiverDiversity = result.MaxUniqueReceivers >= cfg.FanOutThreshold
	return result
}
