package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailpoint/muletrace-engine/internal/db"
	"github.com/trailpoint/muletrace-engine/internal/engine"
	"github.com/trailpoint/muletrace-engine/internal/generator"
	"github.com/trailpoint/muletrace-engine/pkg/models"
)

// APIHandler carries the service collaborators around the scoring core.
// The engine itself is stateless; everything stateful (history store,
// dashboard hub, alert fan-out) lives here at the boundary.
type APIHandler struct {
	dbStore      *db.PostgresStore
	wsHub        *Hub
	alerts       *engine.AlertManager
	baseConfig   engine.Config
	maxBatchSize int
}

// SetupRouter wires the Gin router. dbStore and alerts may be nil: the
// service degrades to scoring-only without persistence or alert fan-out.
func SetupRouter(dbStore *db.PostgresStore, wsHub *Hub, alerts *engine.AlertManager, baseConfig engine.Config, maxBatchSize int) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var.
	// Production: ALLOWED_ORIGINS=https://console.example.com
	// Development: leave empty for *
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore:      dbStore,
		wsHub:        wsHub,
		alerts:       alerts,
		baseConfig:   baseConfig,
		maxBatchSize: maxBatchSize,
	}

	limiter := NewRateLimiter(60, 10)

	api := r.Group("/api/v1")
	api.Use(limiter.Middleware())
	{
		api.POST("/analyze", handler.handleAnalyze)
		api.GET("/health", handler.handleHealth)
		api.GET("/sample", handler.handleSample)
		api.GET("/alerts/recent", handler.handleRecentAlerts)
		api.GET("/assessments/recent", handler.handleRecentAssessments)
		api.GET("/assessments/stats", handler.handleAssessmentStats)
		api.GET("/stream", wsHub.Subscribe)
	}

	return r
}

// analyzeOptions are the per-request tuning overrides accepted at the
// boundary. Absent fields keep the service defaults; present fields are
// validated by engine.Config.Validate before anything runs.
type analyzeOptions struct {
	SimilarityTolerance *float64 `json:"similarity_tolerance"`
	MinClusterSize      *int     `json:"min_cluster_size"`
	FanInThreshold      *int     `json:"fan_in_threshold"`
	FanOutThreshold     *int     `json:"fan_out_threshold"`
	MaxCycleLength      *int     `json:"max_cycle_length"`
}

// handleAnalyze scores one transaction batch.
// POST /api/v1/analyze { "transactions": [...], "options": {...} }
// Add ?accounts=1 for the per-account breakdown.
func (h *APIHandler) handleAnalyze(c *gin.Context) {
	var req struct {
		Transactions []models.Transaction `json:"transactions"`
		Options      *analyzeOptions      `json:"options"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if len(req.Transactions) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Batch too large",
			"details": strconv.Itoa(len(req.Transactions)) + " transactions exceeds the limit of " + strconv.Itoa(h.maxBatchSize),
		})
		return
	}

	cfg := h.baseConfig
	if req.Options != nil {
		applyOptions(&cfg, req.Options)
	}
	cfg.IncludeAccountBreakdown = c.Query("accounts") == "1"

	assessment, err := engine.Analyze(c.Request.Context(), req.Transactions, cfg)
	if err != nil {
		var vErr *engine.ValidationError
		var cErr *engine.ConfigurationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction batch", "details": vErr.Error()})
		case errors.As(err, &cErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysis options", "details": cErr.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed", "details": err.Error()})
		}
		return
	}

	if h.alerts != nil {
		h.alerts.EmitFromAssessment(assessment, len(req.Transactions))
	}

	if h.dbStore != nil {
		if err := h.dbStore.SaveAssessment(c.Request.Context(), uuid.New(), len(req.Transactions), assessment); err != nil {
			// History is best-effort; the verdict still goes out.
			log.Printf("Failed to persist assessment: %v", err)
		}
	}

	c.JSON(http.StatusOK, assessment)
}

func applyOptions(cfg *engine.Config, opts *analyzeOptions) {
	if opts.SimilarityTolerance != nil {
		cfg.SimilarityTolerance = *opts.SimilarityTolerance
	}
	if opts.MinClusterSize != nil {
		cfg.MinClusterSize = *opts.MinClusterSize
	}
	if opts.FanInThreshold != nil {
		cfg.FanInThreshold = *opts.FanInThreshold
	}
	if opts.FanOutThreshold != nil {
		cfg.FanOutThreshold = *opts.FanOutThreshold
	}
	if opts.MaxCycleLength != nil {
		cfg.MaxCycleLength = *opts.MaxCycleLength
	}
}

// handleHealth returns engine status and capabilities for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "MuleTrace Risk Engine v1.0",
		"capabilities": gin.H{
			"cycle_detection":       true,
			"similarity_clustering": true,
			"fan_patterns":          true,
			"account_breakdown":     true,
			"alert_stream":          true,
		},
		"maxBatchSize": h.maxBatchSize,
		"dbConnected":  h.dbStore != nil,
	})
}

// handleSample returns a synthetic demo batch with planted patterns.
// GET /api/v1/sample?seed=42
func (h *APIHandler) handleSample(c *gin.Context) {
	seed, err := strconv.ParseInt(c.DefaultQuery("seed", "1"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid seed"})
		return
	}

	gen := generator.New(seed)
	c.JSON(http.StatusOK, gin.H{"transactions": gen.SampleBatch()})
}

// handleRecentAlerts returns the most recent emitted alerts.
func (h *APIHandler) handleRecentAlerts(c *gin.Context) {
	if h.alerts == nil {
		c.JSON(http.StatusOK, gin.H{"alerts": []engine.Alert{}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, gin.H{"alerts": h.alerts.RecentAlerts(limit)})
}

// handleRecentAssessments returns persisted batch verdicts, newest first.
func (h *APIHandler) handleRecentAssessments(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	assessments, err := h.dbStore.GetRecentAssessments(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch assessment history", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessments": assessments, "count": len(assessments)})
}

// handleAssessmentStats returns per-level counts over the persisted history.
func (h *APIHandler) handleAssessmentStats(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	counts, err := h.dbStore.CountByLevel(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count assessments", "details": err.Error()})
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"byLevel": counts, "total": total})
}

// BroadcastRiskAlert adapts the WebSocket hub into the alert manager's
// fan-out callback.
func BroadcastRiskAlert(wsHub *Hub) func(engine.Alert) {
	return func(alert engine.Alert) {
		payload := gin.H{
			"type":  "risk_alert",
			"alert": alert,
		}
		alertBytes, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Failed to encode risk alert: %v", err)
			return
		}
		wsHub.Broadcast(alertBytes)
	}
}
