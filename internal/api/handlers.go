package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/inframind/infra-mind/internal/auth"
	"github.com/inframind/infra-mind/internal/config"
	"github.com/inframind/infra-mind/internal/models"
	"github.com/inframind/infra-mind/internal/services"
	"github.com/inframind/infra-mind/internal/utils"
)

// Handler owns the route table and request/response mapping for the API.
type Handler struct {
	logger      *slog.Logger
	service     *services.MonitorService
	auth        *auth.Manager
	authEnabled bool
	app         config.AppConfig
	detector    config.DetectorConfig
	risk        config.RiskConfig
	started     time.Time
}

// NewHandler constructs the API handler.
func NewHandler(logger *slog.Logger, service *services.MonitorService, authManager *auth.Manager, cfg *config.Config) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		auth:        authManager,
		authEnabled: cfg.Auth.Enabled && authManager != nil,
		app:         cfg.App,
		detector:    cfg.Detector,
		risk:        cfg.Risk,
		started:     time.Now().UTC(),
	}
}

// Routes builds the versioned route table.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, metricsMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", h.health).Methods(http.MethodGet)
	api.HandleFunc("/health/detailed", h.healthDetailed).Methods(http.MethodGet)
	api.HandleFunc("/health/ready", h.ready).Methods(http.MethodGet)
	api.HandleFunc("/health/live", h.live).Methods(http.MethodGet)

	if h.auth != nil {
		api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
		api.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	}

	metricsRoutes := api.PathPrefix("/metrics").Subrouter()
	slaRoutes := api.PathPrefix("/sla").Subrouter()
	if h.authEnabled {
		metricsRoutes.Use(h.authMiddleware)
		slaRoutes.Use(h.authMiddleware)
	}

	metricsRoutes.HandleFunc("/ingest", h.ingest).Methods(http.MethodPost)
	metricsRoutes.HandleFunc("/ingest/batch", h.ingestBatch).Methods(http.MethodPost)
	metricsRoutes.HandleFunc("/{resource_id}/latest", h.latest).Methods(http.MethodGet)
	metricsRoutes.HandleFunc("/{resource_id}/analyze", h.analyze).Methods(http.MethodGet)
	metricsRoutes.HandleFunc("/{resource_id}/history", h.history).Methods(http.MethodGet)

	slaRoutes.HandleFunc("/{resource_id}/risk", h.slaRisk).Methods(http.MethodGet)
	slaRoutes.HandleFunc("/{resource_id}", h.slaStatus).Methods(http.MethodGet)

	return r
}

type ingestRequest struct {
	ResourceID  string   `json:"resource_id"`
	CPUUsage    *float64 `json:"cpu_usage"`
	MemoryUsage *float64 `json:"memory_usage"`
	GPUUsage    *float64 `json:"gpu_usage"`
	Timestamp   string   `json:"timestamp"`
}

func (req ingestRequest) toSample() (models.MetricSample, error) {
	if req.CPUUsage == nil || req.MemoryUsage == nil || req.GPUUsage == nil {
		return models.MetricSample{}, errors.New("cpu_usage, memory_usage and gpu_usage are required")
	}
	ts, err := utils.ParseTimestamp(req.Timestamp)
	if err != nil {
		return models.MetricSample{}, errors.New("timestamp: " + err.Error())
	}
	return models.MetricSample{
		ResourceID:  req.ResourceID,
		CPUUsage:    *req.CPUUsage,
		MemoryUsage: *req.MemoryUsage,
		GPUUsage:    *req.GPUUsage,
		Timestamp:   ts,
	}, nil
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sample, err := req.toSample()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Ingest(sample); err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "metric ingested",
		"resource_id": sample.ResourceID,
	})
}

type batchIngestRequest struct {
	Samples []ingestRequest `json:"samples"`
}

type batchIngestResult struct {
	ResourceID string `json:"resource_id"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// ingestBatch accepts many samples in one request. Each sample succeeds or
// fails on its own; one bad sample never rejects the rest of the batch.
func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "samples must be non-empty")
		return
	}

	results := make([]batchIngestResult, 0, len(req.Samples))
	successful := 0
	for _, item := range req.Samples {
		result := batchIngestResult{ResourceID: item.ResourceID}
		sample, err := item.toSample()
		if err == nil {
			err = h.service.Ingest(sample)
		}
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Success = true
			successful++
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_received": len(req.Samples),
		"successful":     successful,
		"failed":         len(req.Samples) - successful,
		"results":        results,
		"ingested_at":    time.Now().UTC(),
	})
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["resource_id"]

	sample, err := h.service.Latest(resourceID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["resource_id"]

	windowSize, err := queryInt(r, "window_size", h.detector.WindowSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	zThreshold, err := queryFloat(r, "z_threshold", h.detector.ZThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Analyze(resourceID, windowSize, zThreshold)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if result.Status == models.AnomalyStatusInsufficientData {
		writeError(w, http.StatusNotFound, result.Explanation)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["resource_id"]

	minutes, err := queryInt(r, "minutes", 60)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := h.service.History(resourceID, minutes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resource_id": resourceID,
		"total_count": len(samples),
		"samples":     samples,
	})
}

func (h *Handler) slaRisk(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["resource_id"]

	lookback, err := queryInt(r, "lookback_minutes", h.risk.LookbackMinutes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.AssessRisk(r.Context(), resourceID, lookback)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if result.Status == models.RiskStatusInsufficientData {
		writeError(w, http.StatusNotFound, result.Explanation)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// slaStatus reports the static SLA target for a resource. Compliance
// measurement is out of scope; the predictive signal lives under /risk.
func (h *Handler) slaStatus(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["resource_id"]
	writeJSON(w, http.StatusOK, map[string]string{
		"resource_id":    resourceID,
		"sla_target":     "99.9%",
		"current_status": "OK",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "incorrect email or password")
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := h.auth.Register(req.Email, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeError(w, http.StatusBadRequest, "email already registered")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"app_name":    h.app.Name,
		"version":     h.app.Version,
		"environment": h.app.Environment,
		"timestamp":   time.Now().UTC(),
	})
}

func (h *Handler) healthDetailed(w http.ResponseWriter, _ *http.Request) {
	authState := "disabled"
	if h.authEnabled {
		authState = "enabled"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"app_name":    h.app.Name,
		"version":     h.app.Version,
		"environment": h.app.Environment,
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(h.started).String(),
		"components": map[string]string{
			"api":   "healthy",
			"store": "healthy",
			"auth":  authState,
		},
	})
}

func (h *Handler) ready(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

// writeDomainError maps the core error taxonomy onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case models.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already written; an encode failure has nowhere to go.
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return value, nil
}

func queryFloat(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return value, nil
}
