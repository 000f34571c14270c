package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roam/internal/domain"
	"roam/internal/itinerary"
	"roam/internal/repository"
)

// TripHandler handles HTTP requests for trip registration and queries.
type TripHandler struct {
	tripRepo     repository.TripRepository
	positionRepo repository.PositionRepository
	statusRepo   repository.StepStatusRepository
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripRepo repository.TripRepository, positionRepo repository.PositionRepository, statusRepo repository.StepStatusRepository) *TripHandler {
	return &TripHandler{
		tripRepo:     tripRepo,
		positionRepo: positionRepo,
		statusRepo:   statusRepo,
	}
}

// RegisterTripRequest is the HTTP request body for registering a trip's
// itinerary with the tracking service.
type RegisterTripRequest struct {
	TripID    string                                `json:"trip_id"`
	Title     string                                `json:"title"`
	OwnerID   string                                `json:"owner_id"`
	StartDate string                                `json:"start_date"`
	EndDate   string                                `json:"end_date"`
	Days      map[string]map[string]json.RawMessage `json:"days"`
}

// StepResponse is the HTTP representation of one trackable step.
type StepResponse struct {
	ID             string  `json:"id"`
	TripID         string  `json:"trip_id"`
	DateKey        string  `json:"date_key"`
	Period         string  `json:"period"`
	ActivityType   string  `json:"activity_type,omitempty"`
	PlaceName      string  `json:"place_name"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	ScheduledStart string  `json:"scheduled_start"`
	ScheduledEnd   string  `json:"scheduled_end"`
}

// TripResponse is the HTTP response for trip registration.
type TripResponse struct {
	TripID    string         `json:"trip_id"`
	Title     string         `json:"title"`
	StepCount int            `json:"step_count"`
	Steps     []StepResponse `json:"steps"`
}

// Register handles POST /v1/trips
func (h *TripHandler) Register(c *gin.Context) {
	var req RegisterTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.TripID == "" {
		req.TripID = uuid.New().String()
	}

	steps := itinerary.ExtractSteps(itinerary.Document{
		TripID: req.TripID,
		Days:   req.Days,
	})

	trip := &domain.TrackedTrip{
		ID:        req.TripID,
		Title:     req.Title,
		OwnerID:   req.OwnerID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		CreatedAt: time.Now(),
	}

	if err := h.tripRepo.Create(c.Request.Context(), trip, steps); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, buildTripResponse(trip, steps))
}

// Get handles GET /v1/trips/:id
func (h *TripHandler) Get(c *gin.Context) {
	tripID := c.Param("id")

	trip, err := h.tripRepo.GetByID(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	steps, err := h.tripRepo.GetSteps(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, buildTripResponse(trip, steps))
}

// StepStatusResponse is the HTTP representation of a persisted step status.
type StepStatusResponse struct {
	StepID            string  `json:"step_id"`
	State             string  `json:"state"`
	Phase             string  `json:"phase"`
	Punctuality       string  `json:"punctuality"`
	DeltaMinutes      int     `json:"delta_minutes"`
	ActualArrivalTime string  `json:"actual_arrival_time,omitempty"`
	Performing        bool    `json:"performing"`
	DistanceMeters    float64 `json:"distance_meters"`
}

// GetStatuses handles GET /v1/trips/:id/statuses
func (h *TripHandler) GetStatuses(c *gin.Context) {
	tripID := c.Param("id")

	statuses, err := h.statusRepo.GetByTrip(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]StepStatusResponse, 0, len(statuses))
	for _, status := range statuses {
		response = append(response, buildStatusResponse(*status))
	}

	respondJSON(c, http.StatusOK, response)
}

// PositionResponse is the HTTP representation of a recorded position.
type PositionResponse struct {
	StepID     string  `json:"step_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Accuracy   float64 `json:"accuracy,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}

// GetPositions handles GET /v1/trips/:id/positions
func (h *TripHandler) GetPositions(c *gin.Context) {
	tripID := c.Param("id")

	records, err := h.positionRepo.GetByTrip(c.Request.Context(), tripID, 1000)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PositionResponse, 0, len(records))
	for _, record := range records {
		response = append(response, PositionResponse{
			StepID:     record.StepID,
			Latitude:   record.Latitude,
			Longitude:  record.Longitude,
			Accuracy:   record.Accuracy,
			RecordedAt: record.RecordedAt.Format(time.RFC3339),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

func buildTripResponse(trip *domain.TrackedTrip, steps []domain.Step) TripResponse {
	stepResponses := make([]StepResponse, 0, len(steps))
	for _, step := range steps {
		stepResponses = append(stepResponses, StepResponse{
			ID:             step.ID,
			TripID:         step.TripID,
			DateKey:        step.DateKey,
			Period:         string(step.Period),
			ActivityType:   step.ActivityType,
			PlaceName:      step.PlaceName,
			Lat:            step.Lat,
			Lng:            step.Lng,
			ScheduledStart: step.ScheduledStart.Format(time.RFC3339),
			ScheduledEnd:   step.ScheduledEnd.Format(time.RFC3339),
		})
	}

	return TripResponse{
		TripID:    trip.ID,
		Title:     trip.Title,
		StepCount: len(steps),
		Steps:     stepResponses,
	}
}

func buildStatusResponse(status domain.StepStatus) StepStatusResponse {
	resp := StepStatusResponse{
		StepID:         status.StepID,
		State:          string(status.State),
		Phase:          string(status.Phase),
		Punctuality:    string(status.Punctuality),
		DeltaMinutes:   status.DeltaMinutes,
		Performing:     status.Performing,
		DistanceMeters: status.DistanceMeters,
	}
	if !status.ActualArrivalTime.IsZero() {
		resp.ActualArrivalTime = status.ActualArrivalTime.Format(time.RFC3339)
	}
	return resp
}
