package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/trailpoint/muletrace-engine/internal/engine"
	"github.com/trailpoint/muletrace-engine/pkg/models"
)

func newTestRouter(maxBatch int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()
	alerts := engine.NewAlertManager(BroadcastRiskAlert(hub))
	return SetupRouter(nil, hub, alerts, engine.DefaultConfig(), maxBatch)
}

func postAnalyze(t *testing.T, r *gin.Engine, body any, query string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to encode request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze"+query, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleAnalyze_LayeringScenario(t *testing.T) {
	r := newTestRouter(1000)

	body := map[string]any{
		"transactions": []models.Transaction{
			{Sender: "U1", Receiver: "M1", Amount: 5200},
			{Sender: "U2", Receiver: "M2", Amount: 5100},
			{Sender: "M1", Receiver: "R1", Amount: 5000},
			{Sender: "M2", Receiver: "R1", Amount: 4950},
			{Sender: "R1", Receiver: "M1", Amount: 4900},
			{Sender: "R1", Receiver: "M2", Amount: 4850},
		},
	}
	w := postAnalyze(t, r, body, "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var assessment models.RiskAssessment
	if err := json.Unmarshal(w.Body.Bytes(), &assessment); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !assessment.Metrics.CycleDetected {
		t.Error("Expected cycle_detected=true")
	}
	if assessment.RiskLevel != models.RiskLevelMedium {
		t.Errorf("Expected MEDIUM, got %s (score %v)", assessment.RiskLevel, assessment.RiskScore)
	}
}

func TestHandleAnalyze_EmptyBatch(t *testing.T) {
	w := postAnalyze(t, newTestRouter(1000), map[string]any{"transactions": []models.Transaction{}}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("Empty batch is valid, got %d: %s", w.Code, w.Body.String())
	}

	var assessment models.RiskAssessment
	_ = json.Unmarshal(w.Body.Bytes(), &assessment)
	if assessment.RiskScore != 0 || assessment.RiskLevel != models.RiskLevelLow {
		t.Errorf("Expected 0.0/LOW, got %v/%s", assessment.RiskScore, assessment.RiskLevel)
	}
}

func TestHandleAnalyze_MalformedRecordRejected(t *testing.T) {
	body := map[string]any{
		"transactions": []models.Transaction{
			{Sender: "A", Receiver: "B", Amount: 100},
			{Sender: "C", Receiver: "C", Amount: 50},
		},
	}
	w := postAnalyze(t, newTestRouter(1000), body, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Self-transfer must fail the whole request, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("index 1")) {
		t.Errorf("Error must identify the offending record: %s", w.Body.String())
	}
}

func TestHandleAnalyze_InvalidOptionsRejected(t *testing.T) {
	tolerance := -0.5
	body := map[string]any{
		"transactions": []models.Transaction{{Sender: "A", Receiver: "B", Amount: 100}},
		"options":      map[string]any{"similarity_tolerance": tolerance},
	}
	w := postAnalyze(t, newTestRouter(1000), body, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Negative tolerance must be rejected, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleAnalyze_BatchSizeBounded(t *testing.T) {
	txs := make([]models.Transaction, 6)
	for i := range txs {
		txs[i] = models.Transaction{Sender: "A", Receiver: "B", Amount: 100}
	}
	w := postAnalyze(t, newTestRouter(5), map[string]any{"transactions": txs}, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Oversized batch must be rejected, got %d", w.Code)
	}
}

func TestHandleAnalyze_AccountBreakdownOnRequest(t *testing.T) {
	body := map[string]any{
		"transactions": []models.Transaction{
			{Sender: "A", Receiver: "B", Amount: 100},
			{Sender: "B", Receiver: "A", Amount: 95},
		},
	}
	w := postAnalyze(t, newTestRouter(1000), body, "?accounts=1")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var assessment models.RiskAssessment
	_ = json.Unmarshal(w.Body.Bytes(), &assessment)
	if len(assessment.Accounts) == 0 {
		t.Error("Expected per-account breakdown with ?accounts=1")
	}
}

func TestHandleHealth(t *testing.T) {
	r := newTestRouter(1000)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "operational" {
		t.Errorf("Expected operational status, got %v", resp["status"])
	}
	if resp["dbConnected"] != false {
		t.Errorf("Expected dbConnected=false without a store, got %v", resp["dbConnected"])
	}
}

func TestHandleSample_FeedsAnalyze(t *testing.T) {
	r := newTestRouter(1000)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sample?seed=42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var sample struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sample); err != nil {
		t.Fatalf("Failed to decode sample: %v", err)
	}
	if len(sample.Transactions) == 0 {
		t.Fatal("Expected a non-empty sample batch")
	}

	// The demo batch must round-trip through the analyzer.
	w2 := postAnalyze(t, r, map[string]any{"transactions": sample.Transactions}, "")
	if w2.Code != http.StatusOK {
		t.Fatalf("Sample batch must analyze cleanly, got %d: %s", w2.Code, w2.Body.String())
	}
}

func TestHandleRecentAssessments_NoDatabase(t *testing.T) {
	r := newTestRouter(1000)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/recent", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a database, got %d", w.Code)
	}
}

func TestHandleAssessmentStats_NoDatabase(t *testing.T) {
	r := newTestRouter(1000)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a database, got %d", w.Code)
	}
}

func TestHandleRecentAlerts_NoAlertManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()
	r := SetupRouter(nil, hub, nil, engine.DefaultConfig(), 1000)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/recent", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 without an alert manager, got %d", w.Code)
	}
	var resp struct {
		Alerts []engine.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Alerts) != 0 {
		t.Errorf("Expected an empty alert list, got %d", len(resp.Alerts))
	}
}
