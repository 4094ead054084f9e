package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Risk Aggregator
//
// Joins the four detector outputs into one explainable verdict. Every
// signal contributes a bounded weight, the sum is clamped to [0,1], and
// one human-readable flag is emitted per triggered signal in a fixed
// canonical order — so two runs over the same batch produce byte-equal
// output. The aggregator never fails: an empty batch comes out 0.0/LOW
// with no flags.

// Explanation flags in canonical emission order.
const (
	FlagCyclicFlow            = "cyclic_flow_detected"
	FlagSimilarAmounts        = "similar_amounts"
	FlagHighSenderDiversity   = "high_sender_diversity"
	FlagHighReceiverDiversity = "high_receiver_diversity"
)

// Aggregate combines the detector results under the given weights.
func Aggregate(batchSize int, metrics map[string]models.AccountMetrics, cycles CycleResult, clusters []models.SimilarityCluster, fan FanResult, cfg Config) models.RiskAssessment {
	score := 0.0
	flags := []string{}

	if cycles.Detected {
		score += cfg.CycleWeight
		flags = append(flags, FlagCyclicFlow)
	}

	if biggest := largestCluster(clusters); biggest != nil && biggest.Size >= cfg.MinClusterSize && batchSize > 0 {
		// Scaled by how much of the batch the cluster covers, never
		// exceeding the similarity weight itself.
		contribution := cfg.SimilarityWeight * float64(biggest.Size) / float64(batchSize)
		if contribution > cfg.SimilarityWeight {
			contribution = cfg.SimilarityWeight
		}
		score += contribution
		flags = append(flags, FlagSimilarAmounts)
	}

	fanContribution := 0.0
	if fan.SenderDiversity {
		fanContribution += cfg.FanInWeight
		flags = append(flags, FlagHighSenderDiversity)
	}
	if fan.ReceiverDiversity {
		fanContribution += cfg.FanOutWeight
		flags = append(flags, FlagHighReceiverDiversity)
	}
	if fanContribution > cfg.FanWeightCap {
		fanContribution = cfg.FanWeightCap
	}
	score += fanContribution

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}

	assessment := models.RiskAssessment{
		RiskScore: score,
		RiskLevel: classifyLevel(score, cfg),
		Flags:     flags,
		Metrics:   projectBatchMetrics(metrics, cycles.Detected),
		Cycles:    cycles.Cycles,
	}

	if cfg.IncludeAccountBreakdown {
		assessment.Accounts = buildAccountBreakdown(metrics, cycles, cfg)
	}
	return assessment
}

// classifyLevel maps a clamped score to the three-tier level.
func classifyLevel(score float64, cfg Config) string {
	switch {
	case score >= cfg.HighCutoff:
		return models.RiskLevelHigh
	case score >= cfg.MediumCutoff:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

// projectBatchMetrics reduces the per-account map to the batch view:
// distinct sending/receiving accounts plus the maximum degrees.
func projectBatchMetrics(metrics map[string]models.AccountMetrics, cycleDetected bool) models.BatchMetrics {
	var batch models.BatchMetrics
	batch.CycleDetected = cycleDetected
	for _, m := range metrics {
		if m.OutDegree > 0 {
			batch.UniqueSenders++
		}
		if m.InDegree > 0 {
			batch.UniqueReceivers++
		}
		if m.InDegree > batch.InDegree {
			batch.InDegree = m.InDegree
		}
		if m.OutDegree > batch.OutDegree {
			batch.OutDegree = m.OutDegree
		}
	}
	return batch
}

// buildAccountBreakdown lists every account that contributed to a signal,
// sorted by account ID, with a prose explanation for the analyst console.
func buildAccountBreakdown(metrics map[string]models.AccountMetrics, cycles CycleResult, cfg Config) []models.AccountRisk {
	onCycle := accountsOnCycles(cycles.Cycles)

	var breakdown []models.AccountRisk
	for account, m := range metrics {
		_, ringMember := onCycle[account]
		fanIn := m.UniqueSenders >= cfg.FanInThreshold
		fanOut := m.UniqueReceivers >= cfg.FanOutThreshold
		if !ringMember && !fanIn && !fanOut {
			continue
		}

		var reasons []string
		if fanIn {
			reasons = append(reasons, fmt.Sprintf("received money from %d different accounts", m.UniqueSenders))
		}
		if fanOut {
			reasons = append(reasons, fmt.Sprintf("sent money to %d different accounts", m.UniqueReceivers))
		}
		if ringMember {
			reasons = append(reasons, "moved funds in a circular pattern")
		}

		breakdown = append(breakdown, models.AccountRisk{
			Account:         account,
			Incoming:        m.InDegree,
			Outgoing:        m.OutDegree,
			UniqueSenders:   m.UniqueSenders,
			UniqueReceivers: m.UniqueReceivers,
			OnCycle:         ringMember,
			Explanation:     "flagged because it " + strings.Join(reasons, " and "),
		})
	}

	sort.Slice(breakdown, func(a, b int) bool {
		return breakdown[a].Account < breakdown[b].Account
	})
	return breakdown
}
