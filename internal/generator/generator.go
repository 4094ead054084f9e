// Package generator synthesizes transaction batches for demos and tests:
// random background traffic plus planted laundering patterns (transfer
// rings, mule fan-in, structured near-equal amounts) that the engine is
// expected to surface.
package generator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Generator produces synthetic batches. Seeded, so demo output and test
// fixtures are reproducible.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

// New creates a generator with a fixed seed.
func New(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

// Batch generates background traffic: numTransactions random transfers
// between numAccounts accounts, amounts between 500 and 5000, timestamps
// advancing one to five minutes per record.
func (g *Generator) Batch(numAccounts, numTransactions int) []models.Transaction {
	accounts := make([]string, numAccounts)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("A%03d", i)
	}

	txs := make([]models.Transaction, 0, numTransactions)
	for i := 0; i < numTransactions; i++ {
		sender := accounts[g.rng.Intn(len(accounts))]
		receiver := accounts[g.rng.Intn(len(accounts))]
		for receiver == sender {
			receiver = accounts[g.rng.Intn(len(accounts))]
		}
		txs = append(txs, models.Transaction{
			Sender:   sender,
			Receiver: receiver,
			Amount:   float64(500 + g.rng.Intn(4501)),
			Time:     g.nextTime(),
		})
	}
	return txs
}

// PlantRing appends a closed transfer ring over the given accounts, each
// hop shaving a little off the amount the way real wash cycles do.
func (g *Generator) PlantRing(txs []models.Transaction, accounts []string, amount float64) []models.Transaction {
	for i := range accounts {
		next := accounts[(i+1)%len(accounts)]
		txs = append(txs, models.Transaction{
			Sender:   accounts[i],
			Receiver: next,
			Amount:   amount - float64(i)*50,
			Time:     g.nextTime(),
		})
	}
	return txs
}

// PlantFanIn appends transfers from `senders` distinct payers into one
// collector account, amounts jittered within ±2% to mimic structuring.
func (g *Generator) PlantFanIn(txs []models.Transaction, collector string, senders int, amount float64) []models.Transaction {
	for i := 0; i < senders; i++ {
		jitter := 1 + (g.rng.Float64()-0.5)*0.04
		txs = append(txs, models.Transaction{
			Sender:   fmt.Sprintf("P%03d", i),
			Receiver: collector,
			Amount:   amount * jitter,
			Time:     g.nextTime(),
		})
	}
	return txs
}

// SampleBatch builds the demo batch served by the API: background noise,
// a planted four-account ring and a planted five-payer collection point.
func (g *Generator) SampleBatch() []models.Transaction {
	txs := g.Batch(12, 30)
	txs = g.PlantRing(txs, []string{"R001", "R002", "R003", "R004"}, 4800)
	txs = g.PlantFanIn(txs, "M001", 5, 2500)
	return txs
}

// CanonicalScenario is the two-mule layering case used throughout the
// test suite: funds flow U1→M1 and U2→M2, both mules route into the
// collector R1, and R1 rebounds funds back to each mule.
func CanonicalScenario() []models.Transaction {
	return []models.Transaction{
		{Sender: "U1", Receiver: "M1", Amount: 5200},
		{Sender: "U2", Receiver: "M2", Amount: 5100},
		{Sender: "M1", Receiver: "R1", Amount: 5000},
		{Sender: "M2", Receiver: "R1", Amount: 4950},
		{Sender: "R1", Receiver: "M1", Amount: 4900},
		{Sender: "R1", Receiver: "M2", Amount: 4850},
	}
}

func (g *Generator) nextTime() string {
	g.now = g.now.Add(time.Duration(1+g.rng.Intn(5)) * time.Minute)
	return g.now.Format(time.RFC3339)
}
