package engine

import (
	"math"
	"sort"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Similarity Detector
//
// Surfaces structuring: a larger sum split into several near-equal
// transfers to stay under reporting thresholds. Transactions are sorted
// by (amount, original index) — a stable order — then greedily grouped in
// one linear pass: a transaction joins the current cluster when its
// amount is within tolerance of the cluster representative (the first,
// smallest member), otherwise it starts a new cluster. O(n log n) total.

// DetectSimilarClusters clusters the batch by near-equal amount.
// Singleton clusters are discarded.
func DetectSimilarClusters(txs []models.Transaction, tolerance float64) []models.SimilarityCluster {
	if len(txs) < 2 {
		return nil
	}

	type member struct {
		amount float64
		index  int
	}
	members := make([]member, len(txs))
	for i, tx := range txs {
		members[i] = member{amount: tx.Amount, index: i}
	}
	sort.Slice(members, func(a, b int) bool {
		if members[a].amount != members[b].amount {
			return members[a].amount < members[b].amount
		}
		return members[a].index < members[b].index
	})

	var clusters []models.SimilarityCluster
	current := models.SimilarityCluster{
		Representative: members[0].amount,
		Size:           1,
		Indices:        []int{members[0].index},
	}

	flush := func() {
		if current.Size >= 2 {
			clusters = append(clusters, current)
		}
	}

	for _, m := range members[1:] {
		if amountsSimilar(current.Representative, m.amount, tolerance) {
			current.Size++
			current.Indices = append(current.Indices, m.index)
			continue
		}
		flush()
		current = models.SimilarityCluster{
			Representative: m.amount,
			Size:           1,
			Indices:        []int{m.index},
		}
	}
	flush()

	return clusters
}

// amountsSimilar reports whether |a-b| / max(a,b) <= tolerance.
// Amounts are validated positive before this runs.
func amountsSimilar(a, b, tolerance float64) bool {
	max := math.Max(a, b)
	return math.Abs(a-b)/max <= tolerance
}

// largestCluster returns the biggest reported cluster, or nil when the
// batch produced none. Ties resolve to the first (lowest representative).
func largestCluster(clusters []models.SimilarityCluster) *models.SimilarityCluster {
	var best *models.SimilarityCluster
	for i := range clusters {
		if best == nil || clusters[i].Size > best.Size {
			best = &clusters[i]
		}
	}
	return best
}
