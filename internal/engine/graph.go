package engine

import (
	"sort"
	"time"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Transaction Graph Builder
//
// Turns a validated batch into a directed multigraph of accounts and
// transfers. Nodes are interned to small integer indices and edges live
// in one flat arena slice, so the detectors walk plain int slices instead
// of chasing pointers. The graph is owned by a single analysis run and
// dies with it; nothing here is shared across batches.
//
// Validation policy: ANY malformed record fails the whole batch with a
// ValidationError naming the record and field. Silently dropping records
// would leave the score unexplainable.

// Edge is one transfer between two interned account indices.
type Edge struct {
	From   int
	To     int
	Amount float64
}

// TransactionGraph is an adjacency-list directed multigraph. Parallel
// edges between the same ordered pair are kept: two transfers to the same
// receiver count twice toward degree.
type TransactionGraph struct {
	accounts []string       // index → account ID
	index    map[string]int // account ID → index
	edges    []Edge         // batch insertion order
	out      [][]int        // node → outgoing edge indices
	in       [][]int        // node → incoming edge indices
}

// BuildGraph validates every record and constructs the graph. An empty
// batch is valid input and yields a graph with zero nodes and edges.
func BuildGraph(txs []models.Transaction) (*TransactionGraph, error) {
	g := &TransactionGraph{index: make(map[string]int, len(txs)*2)}

	for i, tx := range txs {
		if err := validateTransaction(i, tx); err != nil {
			return nil, err
		}
		from := g.intern(tx.Sender)
		to := g.intern(tx.Receiver)
		edgeIdx := len(g.edges)
		g.edges = append(g.edges, Edge{From: from, To: to, Amount: tx.Amount})
		g.out[from] = append(g.out[from], edgeIdx)
		g.in[to] = append(g.in[to], edgeIdx)
	}
	return g, nil
}

func validateTransaction(i int, tx models.Transaction) error {
	if tx.Sender == "" {
		return &ValidationError{Index: i, Field: "sender", Reason: "is missing"}
	}
	if tx.Receiver == "" {
		return &ValidationError{Index: i, Field: "receiver", Reason: "is missing"}
	}
	if tx.Sender == tx.Receiver {
		return &ValidationError{Index: i, Field: "receiver", Reason: "equals sender (self-transfer)"}
	}
	if tx.Amount <= 0 {
		return &ValidationError{Index: i, Field: "amount", Reason: "must be positive"}
	}
	if tx.Time != "" {
		if _, err := time.Parse(time.RFC3339, tx.Time); err != nil {
			return &ValidationError{Index: i, Field: "time", Reason: "is not a valid RFC 3339 timestamp"}
		}
	}
	return nil
}

// intern returns the index for an account ID, allocating a node on first sight.
func (g *TransactionGraph) intern(account string) int {
	if idx, ok := g.index[account]; ok {
		return idx
	}
	idx := len(g.accounts)
	g.index[account] = idx
	g.accounts = append(g.accounts, account)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return idx
}

// NodeCount returns the number of distinct accounts observed in the batch.
func (g *TransactionGraph) NodeCount() int { return len(g.accounts) }

// EdgeCount returns the number of transfers, parallel edges included.
func (g *TransactionGraph) EdgeCount() int { return len(g.edges) }

// Account returns the account ID for a node index.
func (g *TransactionGraph) Account(idx int) string { return g.accounts[idx] }

// Edge returns the edge at the given arena index.
func (g *TransactionGraph) Edge(idx int) Edge { return g.edges[idx] }

// OutEdges returns the outgoing edge indices of a node in insertion order.
func (g *TransactionGraph) OutEdges(node int) []int { return g.out[node] }

// InEdges returns the incoming edge indices of a node in insertion order.
func (g *TransactionGraph) InEdges(node int) []int { return g.in[node] }

// nodesByAccount returns all node indices sorted by account ID. This is
// the canonical iteration order shared by the detectors so two runs over
// the same batch (in any input permutation) walk the graph identically.
func (g *TransactionGraph) nodesByAccount() []int {
	order := make([]int, len(g.accounts))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return g.accounts[order[a]] < g.accounts[order[b]]
	})
	return order
}

// collapsedSuccessors collapses parallel edges and returns, for each node,
// its distinct successor indices sorted by account ID.
func (g *TransactionGraph) collapsedSuccessors() [][]int {
	succ := make([][]int, len(g.accounts))
	for node := range g.accounts {
		seen := make(map[int]struct{}, len(g.out[node]))
		for _, edgeIdx := range g.out[node] {
			seen[g.edges[edgeIdx].To] = struct{}{}
		}
		list := make([]int, 0, len(seen))
		for to := range seen {
			list = append(list, to)
		}
		sort.Slice(list, func(a, b int) bool {
			return g.accounts[list[a]] < g.accounts[list[b]]
		})
		succ[node] = list
	}
	return succ
}
