package engine

import (
	"reflect"
	"testing"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

func txsWithAmounts(amounts ...float64) []models.Transaction {
	txs := make([]models.Transaction, len(amounts))
	for i, a := range amounts {
		txs[i] = models.Transaction{Sender: "S", Receiver: "R", Amount: a}
	}
	return txs
}

func TestDetectSimilarClusters_NearEqualPair(t *testing.T) {
	clusters := DetectSimilarClusters(txsWithAmounts(100, 103, 250), 0.05)

	if len(clusters) != 1 {
		t.Fatalf("Expected one cluster ({100, 103}, 250 isolated), got %d: %v", len(clusters), clusters)
	}
	if clusters[0].Size != 2 {
		t.Errorf("Expected cluster size 2, got %d", clusters[0].Size)
	}
	if clusters[0].Representative != 100 {
		t.Errorf("Expected representative 100 (smallest member), got %v", clusters[0].Representative)
	}
	if want := []int{0, 1}; !reflect.DeepEqual(clusters[0].Indices, want) {
		t.Errorf("Expected member indices %v, got %v", want, clusters[0].Indices)
	}
}

func TestDetectSimilarClusters_ToleranceBoundaryInclusive(t *testing.T) {
	// |100-95| / 100 = 0.05 exactly — inside the tolerance.
	clusters := DetectSimilarClusters(txsWithAmounts(95, 100), 0.05)
	if len(clusters) != 1 || clusters[0].Size != 2 {
		t.Errorf("Exact-boundary pair must cluster, got %v", clusters)
	}

	// Just outside.
	clusters = DetectSimilarClusters(txsWithAmounts(94, 100), 0.05)
	if len(clusters) != 0 {
		t.Errorf("Out-of-tolerance pair must not cluster, got %v", clusters)
	}
}

func TestDetectSimilarClusters_SingletonsDiscarded(t *testing.T) {
	clusters := DetectSimilarClusters(txsWithAmounts(10, 500, 90000), 0.03)
	if len(clusters) != 0 {
		t.Errorf("Expected no clusters from spread-out amounts, got %v", clusters)
	}
}

func TestDetectSimilarClusters_GreedyAgainstRepresentative(t *testing.T) {
	// 103 joins 100's cluster; 107 is within 5% of 103 but NOT of the
	// representative 100, so it starts a new cluster and stays singleton.
	clusters := DetectSimilarClusters(txsWithAmounts(100, 103, 107), 0.05)

	if len(clusters) != 1 {
		t.Fatalf("Expected one reported cluster, got %d: %v", len(clusters), clusters)
	}
	if clusters[0].Size != 2 || clusters[0].Representative != 100 {
		t.Errorf("Expected cluster {100, 103}, got %+v", clusters[0])
	}
}

func TestDetectSimilarClusters_TinyBatches(t *testing.T) {
	if got := DetectSimilarClusters(nil, 0.03); got != nil {
		t.Errorf("Empty batch: expected nil, got %v", got)
	}
	if got := DetectSimilarClusters(txsWithAmounts(100), 0.03); got != nil {
		t.Errorf("Single transaction: expected nil, got %v", got)
	}
}

func TestLargestCluster(t *testing.T) {
	clusters := DetectSimilarClusters(txsWithAmounts(100, 101, 102, 500, 505), 0.03)
	biggest := largestCluster(clusters)
	if biggest == nil || biggest.Size != 3 {
		t.Fatalf("Expected largest cluster of size 3, got %+v", biggest)
	}
	if biggest.Representative != 100 {
		t.Errorf("Expected representative 100, got %v", biggest.Representative)
	}
}
