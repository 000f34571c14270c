package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"roam/internal/domain"
	"roam/internal/redis"
	"roam/internal/repository"
	"roam/internal/tracking"
)

// TrackingHandler handles HTTP requests for the live tracking session.
type TrackingHandler struct {
	manager       *tracking.Manager
	tripRepo      repository.TripRepository
	locationStore redis.LocationStoreInterface
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(manager *tracking.Manager, tripRepo repository.TripRepository, locationStore redis.LocationStoreInterface) *TrackingHandler {
	return &TrackingHandler{
		manager:       manager,
		tripRepo:      tripRepo,
		locationStore: locationStore,
	}
}

// StartTrackingRequest is the HTTP request body for starting tracking.
type StartTrackingRequest struct {
	TripID string `json:"trip_id"`
}

// SessionResponse is the HTTP response describing the tracking session.
type SessionResponse struct {
	SessionID     string                 `json:"session_id"`
	TripID        string                 `json:"trip_id"`
	State         string                 `json:"state"`
	Error         string                 `json:"error,omitempty"`
	CurrentStepID string                 `json:"current_step_id,omitempty"`
	LastPosition  *PositionResponse      `json:"last_position,omitempty"`
	Statuses      []StepStatusResponse   `json:"statuses"`
	Viewport      tracking.ViewportState `json:"viewport"`
}

// Start handles POST /v1/tracking/start
func (h *TrackingHandler) Start(c *gin.Context) {
	var req StartTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.TripID == "" {
		respondError(c, tracking.ErrInvalidTripID)
		return
	}

	trip, err := h.tripRepo.GetByID(c.Request.Context(), req.TripID)
	if err != nil {
		respondError(c, err)
		return
	}

	steps, err := h.tripRepo.GetSteps(c.Request.Context(), req.TripID)
	if err != nil {
		respondError(c, err)
		return
	}

	snapshot, err := h.manager.Start(c.Request.Context(), *trip, steps)
	if err != nil {
		// A degraded session remains observable; include it when present.
		if snapshot != nil {
			c.JSON(mapErrorToHTTPStatus(err), buildSessionResponse(snapshot))
			return
		}
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, buildSessionResponse(snapshot))
}

// Stop handles POST /v1/tracking/stop
func (h *TrackingHandler) Stop(c *gin.Context) {
	if err := h.manager.Stop(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "stopped"})
}

// PositionTickRequest is the HTTP request body for one position fix.
type PositionTickRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp string  `json:"timestamp"`
}

// Tick handles POST /v1/tracking/position
func (h *TrackingHandler) Tick(c *gin.Context) {
	var req PositionTickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	pos := domain.Position{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
	}
	if req.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			pos.Timestamp = ts
		}
	}

	if err := h.manager.Ingest(pos); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, gin.H{"status": "accepted"})
}

// Session handles GET /v1/tracking/session
func (h *TrackingHandler) Session(c *gin.Context) {
	snapshot, err := h.manager.Snapshot()
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, buildSessionResponse(snapshot))
}

// Route handles GET /v1/tracking/route
func (h *TrackingHandler) Route(c *gin.Context) {
	route, err := h.manager.Route()
	if err != nil {
		respondError(c, err)
		return
	}

	if route == nil {
		respondJSON(c, http.StatusOK, gin.H{"route": nil})
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"route": route})
}

// History handles GET /v1/tracking/history
func (h *TrackingHandler) History(c *gin.Context) {
	history, err := h.manager.History()
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PositionResponse, 0, len(history))
	for _, pos := range history {
		response = append(response, PositionResponse{
			Latitude:   pos.Latitude,
			Longitude:  pos.Longitude,
			Accuracy:   pos.Accuracy,
			RecordedAt: pos.Timestamp.Format(time.RFC3339),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// Viewport handles GET /v1/tracking/viewport
func (h *TrackingHandler) Viewport(c *gin.Context) {
	snapshot, err := h.manager.Snapshot()
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, snapshot.Viewport)
}

// Gesture handles POST /v1/tracking/viewport/gesture
func (h *TrackingHandler) Gesture(c *gin.Context) {
	if err := h.manager.ReportGesture(); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"auto_fit": false})
}

// Recenter handles POST /v1/tracking/viewport/recenter
func (h *TrackingHandler) Recenter(c *gin.Context) {
	if err := h.manager.Recenter(); err != nil {
		respondError(c, err)
		return
	}

	snapshot, err := h.manager.Snapshot()
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, snapshot.Viewport)
}

// NearbyTravelers handles GET /v1/travelers/nearby
func (h *TrackingHandler) NearbyTravelers(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng query parameters are required"})
		return
	}

	radiusKm := 5.0
	if raw := c.Query("radius_km"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			radiusKm = parsed
		}
	}

	travelers, err := h.locationStore.FindNearbyTravelers(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, travelers)
}

func buildSessionResponse(snapshot *tracking.SessionSnapshot) SessionResponse {
	statuses := make([]StepStatusResponse, 0, len(snapshot.Statuses))
	for _, status := range snapshot.Statuses {
		statuses = append(statuses, buildStatusResponse(status))
	}

	resp := SessionResponse{
		SessionID:     snapshot.SessionID,
		TripID:        snapshot.TripID,
		State:         string(snapshot.State),
		Error:         snapshot.Error,
		CurrentStepID: snapshot.CurrentStepID,
		Statuses:      statuses,
		Viewport:      snapshot.Viewport,
	}

	if snapshot.LastPosition != nil {
		resp.LastPosition = &PositionResponse{
			Latitude:   snapshot.LastPosition.Latitude,
			Longitude:  snapshot.LastPosition.Longitude,
			Accuracy:   snapshot.LastPosition.Accuracy,
			RecordedAt: snapshot.LastPosition.Timestamp.Format(time.RFC3339),
		}
	}

	return resp
}
