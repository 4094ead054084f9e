package engine

import (
	"context"
	"sync"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Analysis Orchestrator
//
// One call, one batch, one verdict. The configuration is validated
// before anything runs, the batch is validated while the graph is built,
// and the detectors fan out onto goroutines afterwards: cycle detection
// and similarity clustering depend only on the graph and the raw batch,
// while the fan-pattern scan runs behind the structural metrics it
// consumes. The aggregator is the join point.
//
// Nothing is retained between calls. Concurrent Analyze invocations
// share no state, so callers may run batches in parallel freely.

// Analyze scores one closed batch of transactions under cfg.
//
// Returns a ConfigurationError for invalid tuning, a ValidationError for
// any malformed record, or a complete RiskAssessment. The context is
// only consulted at the join point: the computation is in-memory and
// CPU-bound, so an abandoned request at worst wastes the remaining work.
func Analyze(ctx context.Context, txs []models.Transaction, cfg Config) (models.RiskAssessment, error) {
	if err := cfg.Validate(); err != nil {
		return models.RiskAssessment{}, err
	}

	graph, err := BuildGraph(txs)
	if err != nil {
		return models.RiskAssessment{}, err
	}

	var (
		metrics  map[string]models.AccountMetrics
		fan      FanResult
		cycles   CycleResult
		clusters []models.SimilarityCluster
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		metrics = ComputeAccountMetrics(graph)
		fan = DetectFanPatterns(metrics, cfg)
	}()
	go func() {
		defer wg.Done()
		cycles = DetectCycles(graph, cfg.MaxCycleLength)
	}()
	go func() {
		defer wg.Done()
		clusters = DetectSimilarClusters(txs, cfg.SimilarityTolerance)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return models.RiskAssessment{}, err
	}

	return Aggregate(len(txs), metrics, cycles, clusters, fan, cfg), nil
}
