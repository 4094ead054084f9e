package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// Alert Emission
//
// Elevated verdicts fan out three ways: to connected analyst dashboards
// through a WebSocket callback, to registered webhook endpoints (Slack,
// SIEM), and into a bounded in-memory history for the recent-alerts API.
// Webhook delivery is asynchronous so a slow receiver never stalls an
// analysis request.

// Alert is one emitted risk notification.
type Alert struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Level      string                 `json:"level"` // MEDIUM / HIGH
	Title      string                 `json:"title"`
	BatchSize  int                    `json:"batchSize"`
	Assessment *models.RiskAssessment `json:"assessment,omitempty"`
}

// WebhookEndpoint is a registered webhook receiver.
type WebhookEndpoint struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Enabled  bool              `json:"enabled"`
	Headers  map[string]string `json:"headers,omitempty"`
	MinLevel string            `json:"minLevel"` // only alerts at or above this level are delivered
}

// AlertManager handles alert emission and webhook delivery.
type AlertManager struct {
	mu           sync.RWMutex
	webhooks     []WebhookEndpoint
	recentAlerts []Alert
	maxHistory   int
	httpClient   *http.Client
	broadcastFn  func(Alert) // WebSocket fan-out callback
}

// NewAlertManager creates an alert manager. broadcastFn may be nil when
// no live dashboard feed is wired.
func NewAlertManager(broadcastFn func(Alert)) *AlertManager {
	return &AlertManager{
		maxHistory:  1000,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		broadcastFn: broadcastFn,
	}
}

// RegisterWebhook adds a webhook endpoint.
func (am *AlertManager) RegisterWebhook(name, url, minLevel string, headers map[string]string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.webhooks = append(am.webhooks, WebhookEndpoint{
		Name:     name,
		URL:      url,
		Enabled:  true,
		Headers:  headers,
		MinLevel: minLevel,
	})
	log.Printf("[AlertManager] Registered webhook: %s → %s (min: %s)", name, url, minLevel)
}

// EmitFromAssessment raises an alert for an elevated batch verdict.
// LOW verdicts never alert.
func (am *AlertManager) EmitFromAssessment(assessment models.RiskAssessment, batchSize int) {
	if assessment.RiskLevel == models.RiskLevelLow {
		return
	}

	title := fmt.Sprintf("%s risk batch: score %.2f", assessment.RiskLevel, assessment.RiskScore)
	if len(assessment.Flags) > 0 {
		title += " (" + strings.Join(assessment.Flags, ", ") + ")"
	}

	am.emit(Alert{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Level:      assessment.RiskLevel,
		Title:      title,
		BatchSize:  batchSize,
		Assessment: &assessment,
	})
}

func (am *AlertManager) emit(alert Alert) {
	am.mu.Lock()
	am.recentAlerts = append(am.recentAlerts, alert)
	if len(am.recentAlerts) > am.maxHistory {
		am.recentAlerts = am.recentAlerts[len(am.recentAlerts)-am.maxHistory:]
	}
	webhooks := make([]WebhookEndpoint, len(am.webhooks))
	copy(webhooks, am.webhooks)
	am.mu.Unlock()

	if am.broadcastFn != nil {
		am.broadcastFn(alert)
	}

	for _, wh := range webhooks {
		if !wh.Enabled || !levelMeetsThreshold(alert.Level, wh.MinLevel) {
			continue
		}
		go am.sendWebhook(wh, alert)
	}

	log.Printf("[Alert] [%s] %s", alert.Level, alert.Title)
}

// RecentAlerts returns up to limit alerts, most recent first.
func (am *AlertManager) RecentAlerts(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.recentAlerts) {
		limit = len(am.recentAlerts)
	}
	start := len(am.recentAlerts) - limit
	result := make([]Alert, limit)
	for i := 0; i < limit; i++ {
		result[i] = am.recentAlerts[start+limit-1-i]
	}
	return result
}

func (am *AlertManager) sendWebhook(wh WebhookEndpoint, alert Alert) {
	payload, err := json.Marshal(map[string]any{
		"text":  alert.Title,
		"alert": alert,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("[AlertManager] Bad webhook request for %s: %v", wh.Name, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}

	resp, err := am.httpClient.Do(req)
	if err != nil {
		log.Printf("[AlertManager] Webhook %s delivery failed: %v", wh.Name, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[AlertManager] Webhook %s returned status %d", wh.Name, resp.StatusCode)
	}
}

// levelMeetsThreshold compares two risk levels by rank.
func levelMeetsThreshold(level, min string) bool {
	return levelRank(level) >= levelRank(min)
}

func levelRank(level string) int {
	switch level {
	case models.RiskLevelHigh:
		return 2
	case models.RiskLevelMedium:
		return 1
	default:
		return 0
	}
}
