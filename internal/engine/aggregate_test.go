package engine

import (
	"math"
	"reflect"
	"testing"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

func TestAggregate_EmptyBatch(t *testing.T) {
	assessment := Aggregate(0, map[string]models.AccountMetrics{}, CycleResult{}, nil, FanResult{}, DefaultConfig())

	if assessment.RiskScore != 0.0 {
		t.Errorf("Expected score 0.0, got %v", assessment.RiskScore)
	}
	if assessment.RiskLevel != models.RiskLevelLow {
		t.Errorf("Expected LOW, got %s", assessment.RiskLevel)
	}
	if len(assessment.Flags) != 0 {
		t.Errorf("Expected no flags, got %v", assessment.Flags)
	}
	if assessment.Metrics.CycleDetected {
		t.Error("Expected cycle_detected=false on empty batch")
	}
}

func TestAggregate_CanonicalFlagOrder(t *testing.T) {
	cfg := DefaultConfig()
	metrics := map[string]models.AccountMetrics{
		"M": {InDegree: 3, OutDegree: 3, UniqueSenders: 3, UniqueReceivers: 3},
	}
	cycles := CycleResult{Detected: true}
	clusters := []models.SimilarityCluster{{Representative: 100, Size: 3, Indices: []int{0, 1, 2}}}
	fan := FanResult{SenderDiversity: true, ReceiverDiversity: true}

	assessment := Aggregate(10, metrics, cycles, clusters, fan, cfg)

	want := []string{
		FlagCyclicFlow,
		FlagSimilarAmounts,
		FlagHighSenderDiversity,
		FlagHighReceiverDiversity,
	}
	if !reflect.DeepEqual(assessment.Flags, want) {
		t.Errorf("Flags not in canonical order: got %v, want %v", assessment.Flags, want)
	}
}

func TestAggregate_WeightsAndClamping(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("Cycle Plus Scaled Similarity", func(t *testing.T) {
		clusters := []models.SimilarityCluster{{Size: 4}}
		assessment := Aggregate(6, nil, CycleResult{Detected: true}, clusters, FanResult{}, cfg)

		// 0.4 + 0.3 * 4/6 = 0.6
		if math.Abs(assessment.RiskScore-0.6) > 1e-9 {
			t.Errorf("Expected score 0.6, got %v", assessment.RiskScore)
		}
		if assessment.RiskLevel != models.RiskLevelMedium {
			t.Errorf("Expected MEDIUM, got %s", assessment.RiskLevel)
		}
	})

	t.Run("Fan Contributions Capped Combined", func(t *testing.T) {
		fan := FanResult{SenderDiversity: true, ReceiverDiversity: true}
		assessment := Aggregate(6, nil, CycleResult{}, nil, fan, cfg)

		// 0.3 + 0.3 capped at 0.3
		if math.Abs(assessment.RiskScore-0.3) > 1e-9 {
			t.Errorf("Expected capped fan score 0.3, got %v", assessment.RiskScore)
		}
	})

	t.Run("All Signals Clamped To One", func(t *testing.T) {
		cfgHot := cfg
		cfgHot.CycleWeight = 0.9
		clusters := []models.SimilarityCluster{{Size: 6}}
		fan := FanResult{SenderDiversity: true, ReceiverDiversity: true}

		assessment := Aggregate(6, nil, CycleResult{Detected: true}, clusters, fan, cfgHot)
		if assessment.RiskScore != 1.0 {
			t.Errorf("Expected clamped score 1.0, got %v", assessment.RiskScore)
		}
		if assessment.RiskLevel != models.RiskLevelHigh {
			t.Errorf("Expected HIGH, got %s", assessment.RiskLevel)
		}
	})

	t.Run("Small Cluster Below Minimum Size Ignored", func(t *testing.T) {
		clusters := []models.SimilarityCluster{{Size: 2}}
		assessment := Aggregate(6, nil, CycleResult{}, clusters, FanResult{}, cfg)
		if assessment.RiskScore != 0 || len(assessment.Flags) != 0 {
			t.Errorf("Two-member cluster must not fire at default threshold, got %+v", assessment)
		}
	})
}

func TestClassifyLevel_Cutoffs(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		score float64
		want  string
	}{
		{0.0, models.RiskLevelLow},
		{0.39, models.RiskLevelLow},
		{0.4, models.RiskLevelMedium}, // cutoff is inclusive
		{0.69, models.RiskLevelMedium},
		{0.7, models.RiskLevelHigh},
		{1.0, models.RiskLevelHigh},
	}
	for _, tt := range tests {
		if got := classifyLevel(tt.score, cfg); got != tt.want {
			t.Errorf("classifyLevel(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestProjectBatchMetrics(t *testing.T) {
	metrics := map[string]models.AccountMetrics{
		"A": {OutDegree: 2},
		"B": {InDegree: 1, OutDegree: 1},
		"C": {InDegree: 2},
	}

	batch := projectBatchMetrics(metrics, true)

	if batch.UniqueSenders != 2 {
		t.Errorf("Expected 2 sending accounts, got %d", batch.UniqueSenders)
	}
	if batch.UniqueReceivers != 2 {
		t.Errorf("Expected 2 receiving accounts, got %d", batch.UniqueReceivers)
	}
	if batch.InDegree != 2 || batch.OutDegree != 2 {
		t.Errorf("Expected max degrees 2/2, got %d/%d", batch.InDegree, batch.OutDegree)
	}
	if !batch.CycleDetected {
		t.Error("Expected cycle_detected carried through")
	}
}

func TestBuildAccountBreakdown(t *testing.T) {
	cfg := DefaultConfig()
	metrics := map[string]models.AccountMetrics{
		"M1": {InDegree: 4, OutDegree: 1, UniqueSenders: 4, UniqueReceivers: 1},
		"X":  {InDegree: 1, OutDegree: 1, UniqueSenders: 1, UniqueReceivers: 1},
		"A":  {InDegree: 1, OutDegree: 1, UniqueSenders: 1, UniqueReceivers: 1},
	}
	cycles := CycleResult{
		Detected: true,
		Cycles:   []models.CyclePattern{{Path: []string{"A", "M1", "A"}, Length: 2}},
	}

	breakdown := buildAccountBreakdown(metrics, cycles, cfg)

	if len(breakdown) != 2 {
		t.Fatalf("Expected 2 flagged accounts (A and M1), got %d: %+v", len(breakdown), breakdown)
	}
	// Sorted by account ID.
	if breakdown[0].Account != "A" || breakdown[1].Account != "M1" {
		t.Errorf("Expected [A M1], got [%s %s]", breakdown[0].Account, breakdown[1].Account)
	}
	if !breakdown[0].OnCycle {
		t.Error("A must be marked on-cycle")
	}
	if breakdown[1].Explanation == "" {
		t.Error("Flagged account must carry an explanation")
	}
}
