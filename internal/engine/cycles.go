package engine

import (
	"strings"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Cycle Detector
//
// Finds money returning to an origin account through intermediaries.
// Parallel edges are collapsed to one logical edge per ordered pair and a
// depth-first search is driven from every node in canonical order; a
// back-edge to a node still on the active path closes a ring, and the
// suffix of the path from that node is the minimal cycle at that edge.
//
// Determinism: nodes and successors are iterated sorted by account ID, so
// the emitted cycle list is identical for any permutation of the input
// batch. Each enumerated ring is rotated so its smallest account comes
// first and deduplicated on that canonical form.
//
// Rings longer than maxLength are counted but not enumerated, which keeps
// the output bounded on dense adversarial graphs while still setting the
// batch-level boolean.

const (
	colorWhite = iota // not yet visited
	colorGray         // on the active DFS path
	colorBlack        // fully explored
)

// CycleResult is the cycle detector's verdict for one batch.
type CycleResult struct {
	Cycles    []models.CyclePattern
	Detected  bool // true even when every ring exceeded maxLength
	Truncated int  // rings found but not enumerated due to the length cap
}

// DetectCycles runs the DFS over the collapsed simple digraph.
func DetectCycles(g *TransactionGraph, maxLength int) CycleResult {
	var result CycleResult

	n := g.NodeCount()
	if n == 0 {
		return result
	}

	succ := g.collapsedSuccessors()
	color := make([]int, n)
	pathPos := make([]int, n)
	for i := range pathPos {
		pathPos[i] = -1
	}

	var path []int
	seen := make(map[string]struct{})

	var dfs func(node int)
	dfs = func(node int) {
		color[node] = colorGray
		pathPos[node] = len(path)
		path = append(path, node)

		for _, next := range succ[node] {
			switch color[next] {
			case colorWhite:
				dfs(next)
			case colorGray:
				// Back-edge: the path suffix from `next` is a ring.
				ring := path[pathPos[next]:]
				result.Detected = true
				if len(ring) > maxLength {
					result.Truncated++
					continue
				}
				if pattern, ok := canonicalCycle(g, ring, seen); ok {
					result.Cycles = append(result.Cycles, pattern)
				}
			}
		}

		path = path[:len(path)-1]
		pathPos[node] = -1
		color[node] = colorBlack
	}

	for _, node := range g.nodesByAccount() {
		if color[node] == colorWhite {
			dfs(node)
		}
	}
	return result
}

// canonicalCycle rotates a ring so its smallest account ID comes first,
// rejects duplicates, and renders the closed a0 → … → a0 path.
func canonicalCycle(g *TransactionGraph, ring []int, seen map[string]struct{}) (models.CyclePattern, bool) {
	pivot := 0
	for i := 1; i < len(ring); i++ {
		if g.Account(ring[i]) < g.Account(ring[pivot]) {
			pivot = i
		}
	}

	accounts := make([]string, 0, len(ring)+1)
	for i := 0; i < len(ring); i++ {
		accounts = append(accounts, g.Account(ring[(pivot+i)%len(ring)]))
	}

	key := strings.Join(accounts, "\x00")
	if _, dup := seen[key]; dup {
		return models.CyclePattern{}, false
	}
	seen[key] = struct{}{}

	accounts = append(accounts, accounts[0]) // close the ring for display
	return models.CyclePattern{Path: accounts, Length: len(ring)}, true
}

// accountsOnCycles collects every account that appears on an enumerated ring.
func accountsOnCycles(cycles []models.CyclePattern) map[string]struct{} {
	onCycle := make(map[string]struct{})
	for _, c := range cycles {
		for _, account := range c.Path {
			onCycle[account] = struct{}{}
		}
	}
	return onCycle
}
