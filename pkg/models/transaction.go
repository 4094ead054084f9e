package models

// Transaction is one money-movement record inside an analysis batch.
// Records arrive over the wire as loosely-typed JSON; the graph builder
// validates every field before anything downstream touches them.
type Transaction struct {
	Sender   string  `json:"sender"`
	Receiver string  `json:"receiver"`
	Amount   float64 `json:"amount"`
	Time     string  `json:"time,omitempty"` // RFC 3339, optional
}

// AccountMetrics holds the per-account structural counters derived from
// the transaction graph. Read-only after computation.
type AccountMetrics struct {
	InDegree        int `json:"in_degree"`        // edges received, multiplicity counted
	OutDegree       int `json:"out_degree"`       // edges sent, multiplicity counted
	UniqueSenders   int `json:"unique_senders"`   // distinct counterparties that sent to this account
	UniqueReceivers int `json:"unique_receivers"` // distinct counterparties this account sent to
}

// CyclePattern is a closed walk of accounts a0 → a1 → … → a0. The path
// includes the repeated origin so the ring reads naturally in reports.
type CyclePattern struct {
	Path   []string `json:"path"`
	Length int      `json:"length"` // number of distinct accounts on the ring
}

// SimilarityCluster groups transactions whose amounts sit within the
// configured relative tolerance of the cluster representative.
// Clusters of size 1 are never reported.
type SimilarityCluster struct {
	Representative float64 `json:"representative"` // amount of the first (smallest) member
	Size           int     `json:"size"`
	Indices        []int   `json:"indices"` // positions in the original batch
}

// BatchMetrics is the batch-level projection of the per-account metrics
// returned to callers.
type BatchMetrics struct {
	UniqueSenders   int  `json:"unique_senders"`   // distinct accounts that sent at least once
	UniqueReceivers int  `json:"unique_receivers"` // distinct accounts that received at least once
	InDegree        int  `json:"in_degree"`        // max in-degree over all accounts
	OutDegree       int  `json:"out_degree"`       // max out-degree over all accounts
	CycleDetected   bool `json:"cycle_detected"`
}

// AccountRisk is the optional per-account breakdown for analyst review.
// Only accounts that contributed to a signal are listed.
type AccountRisk struct {
	Account         string `json:"account"`
	Incoming        int    `json:"incoming"`
	Outgoing        int    `json:"outgoing"`
	UniqueSenders   int    `json:"unique_senders"`
	UniqueReceivers int    `json:"unique_receivers"`
	OnCycle         bool   `json:"on_cycle"`
	Explanation     string `json:"explanation"`
}

// Risk levels, ordered from benign to severe.
const (
	RiskLevelLow    = "LOW"
	RiskLevelMedium = "MEDIUM"
	RiskLevelHigh   = "HIGH"
)

// RiskAssessment is the engine's verdict for one batch. Produced fresh
// per analysis call and never mutated afterwards.
type RiskAssessment struct {
	RiskScore float64        `json:"risk_score"` // clamped to [0,1]
	RiskLevel string         `json:"risk_level"` // LOW / MEDIUM / HIGH
	Flags     []string       `json:"flags"`      // canonical order, one per triggered signal
	Metrics   BatchMetrics   `json:"metrics"`
	Cycles    []CyclePattern `json:"cycles,omitempty"`
	Accounts  []AccountRisk  `json:"accounts,omitempty"` // populated on request
}
