package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init
// works inside the runtime container without shipping the .sql file.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore persists assessment history for analyst review. The
// engine itself stays stateless: nothing is ever read back into a
// scoring run.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for assessment history")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Assessment history schema initialized")
	return nil
}

// StoredAssessment is one persisted batch verdict.
type StoredAssessment struct {
	ID            uuid.UUID             `json:"id"`
	CreatedAt     time.Time             `json:"createdAt"`
	BatchSize     int                   `json:"batchSize"`
	RiskScore     float64               `json:"riskScore"`
	RiskLevel     string                `json:"riskLevel"`
	CycleDetected bool                  `json:"cycleDetected"`
	Assessment    models.RiskAssessment `json:"assessment"`
}

// SaveAssessment persists one batch verdict with its full JSON payload.
func (s *PostgresStore) SaveAssessment(ctx context.Context, id uuid.UUID, batchSize int, a models.RiskAssessment) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %v", err)
	}

	sql := `
		INSERT INTO risk_assessments (id, batch_size, risk_score, risk_level, flags, cycle_detected, assessment)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = s.pool.Exec(ctx, sql, id, batchSize, a.RiskScore, a.RiskLevel, a.Flags, a.Metrics.CycleDetected, payload)
	if err != nil {
		return fmt.Errorf("failed to insert risk assessment: %v", err)
	}
	return nil
}

// GetRecentAssessments returns up to limit persisted verdicts, newest first.
func (s *PostgresStore) GetRecentAssessments(ctx context.Context, limit int) ([]StoredAssessment, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	sql := `
		SELECT id, created_at, batch_size, risk_score, risk_level, cycle_detected, assessment
		FROM risk_assessments
		ORDER BY created_at DESC
		LIMIT $1;
	`
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk assessments: %v", err)
	}
	defer rows.Close()

	var results []StoredAssessment
	for rows.Next() {
		var stored StoredAssessment
		var payload []byte
		if err := rows.Scan(&stored.ID, &stored.CreatedAt, &stored.BatchSize, &stored.RiskScore, &stored.RiskLevel, &stored.CycleDetected, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan risk assessment: %v", err)
		}
		if err := json.Unmarshal(payload, &stored.Assessment); err != nil {
			return nil, fmt.Errorf("failed to decode assessment payload: %v", err)
		}
		results = append(results, stored)
	}
	return results, rows.Err()
}

// CountByLevel returns how many persisted batches landed at each risk level.
func (s *PostgresStore) CountByLevel(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT risk_level, COUNT(*) FROM risk_assessments GROUP BY risk_level;`)
	if err != nil {
		return nil, fmt.Errorf("failed to count assessments: %v", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		counts[level] = count
	}
	return counts, rows.Err()
}
