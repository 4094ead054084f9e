package engine

import (
	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Structural Metrics
//
// Per-account degree and diversity counters, a pure function of the
// graph. Degree counts multiplicity (two transfers to the same receiver
// count as 2); the unique-counterparty counters deduplicate.

// ComputeAccountMetrics derives the per-account counters. An empty graph
// yields an empty map.
func ComputeAccountMetrics(g *TransactionGraph) map[string]models.AccountMetrics {
	result := make(map[string]models.AccountMetrics, g.NodeCount())

	for node := 0; node < g.NodeCount(); node++ {
		senders := make(map[int]struct{})
		for _, edgeIdx := range g.InEdges(node) {
			senders[g.Edge(edgeIdx).From] = struct{}{}
		}
		receivers := make(map[int]struct{})
		for _, edgeIdx := range g.OutEdges(node) {
			receivers[g.Edge(edgeIdx).To] = struct{}{}
		}

		result[g.Account(node)] = models.AccountMetrics{
			InDegree:        len(g.InEdges(node)),
			OutDegree:       len(g.OutEdges(node)),
			UniqueSenders:   len(senders),
			UniqueReceivers: len(receivers),
		}
	}
	return result
}
