package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"waka/internal/domain"
	"waka/internal/service"
)

// TripHandler handles HTTP requests for trip sessions.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// LegProgressResponse is the per-leg progress in trip responses.
type LegProgressResponse struct {
	LegOrder             int    `json:"leg_order"`
	Status               string `json:"status"`
	TransferAlertSent    bool   `json:"transfer_alert_sent"`
	TransferImminentSent bool   `json:"transfer_imminent_sent"`
	DestinationAlertSent bool   `json:"destination_alert_sent"`
	StartedAt            string `json:"started_at,omitempty"`
	EndedAt              string `json:"ended_at,omitempty"`
}

// PositionResponse is the last known position in trip responses.
type PositionResponse struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	AccuracyM float64 `json:"accuracy_m,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	TripID           string                `json:"trip_id"`
	UserID           string                `json:"user_id"`
	RouteID          string                `json:"route_id"`
	Status           string                `json:"status"`
	CurrentLegIndex  int                   `json:"current_leg_index"`
	Legs             []LegProgressResponse `json:"legs,omitempty"`
	LastPosition     *PositionResponse     `json:"last_position,omitempty"`
	EstimatedArrival string                `json:"estimated_arrival"`
	StartedAt        string                `json:"started_at"`
	CompletedAt      string                `json:"completed_at,omitempty"`
	EndReason        string                `json:"end_reason,omitempty"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
}

// ProgressResponse is the HTTP response for location updates.
type ProgressResponse struct {
	CurrentStepCompleted bool                `json:"current_step_completed"`
	NextStepStarted      bool                `json:"next_step_started"`
	TripCompleted        bool                `json:"trip_completed"`
	DistanceToWaypointM  float64             `json:"distance_to_next_waypoint_m"`
	EstimatedArrival     string              `json:"estimated_arrival"`
	Alerts               []domain.AlertEvent `json:"alerts"`
	Session              TripResponse        `json:"session"`
}

// StartTripRequest is the payload for POST /v1/trips.
type StartTripRequest struct {
	UserID  string  `json:"user_id" binding:"required"`
	RouteID string  `json:"route_id" binding:"required"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// StartTrip handles POST /v1/trips
func (h *TripHandler) StartTrip(c *gin.Context) {
	var req StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	session, err := h.tripService.StartTrip(c.Request.Context(), service.StartTripRequest{
		UserID:  req.UserID,
		RouteID: req.RouteID,
		Lat:     req.Lat,
		Lng:     req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTripResponse(session))
}

// UpdateLocationRequest is the payload for PATCH /v1/trips/:id/location.
type UpdateLocationRequest struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	AccuracyM float64 `json:"accuracy_m"`
	Timestamp string  `json:"timestamp"` // RFC3339, optional
}

// UpdateLocation handles PATCH /v1/trips/:id/location
func (h *TripHandler) UpdateLocation(c *gin.Context) {
	tripID := c.Param("id")

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "timestamp must be RFC3339"})
			return
		}
		ts = parsed
	}

	result, err := h.tripService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		TripID:    tripID,
		Lat:       req.Lat,
		Lng:       req.Lng,
		AccuracyM: req.AccuracyM,
		Timestamp: ts,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	alerts := result.Alerts
	if alerts == nil {
		alerts = []domain.AlertEvent{}
	}

	respondJSON(c, http.StatusOK, ProgressResponse{
		CurrentStepCompleted: result.CurrentStepCompleted,
		NextStepStarted:      result.NextStepStarted,
		TripCompleted:        result.TripCompleted,
		DistanceToWaypointM:  result.DistanceToWaypointM,
		EstimatedArrival:     formatTime(result.EstimatedArrival),
		Alerts:               alerts,
		Session:              toTripResponse(result.Session),
	})
}

// CompleteTrip handles POST /v1/trips/:id/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	session, err := h.tripService.CompleteTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(session))
}

// EndTrip handles POST /v1/trips/:id/end
func (h *TripHandler) EndTrip(c *gin.Context) {
	session, err := h.tripService.EndTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(session))
}

// CancelTripRequest is the payload for POST /v1/trips/:id/cancel.
type CancelTripRequest struct {
	Reason string `json:"reason"`
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	var req CancelTripRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	session, err := h.tripService.CancelTrip(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(session))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	session, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(session))
}

// GetActiveTrip handles GET /v1/users/:id/trip
func (h *TripHandler) GetActiveTrip(c *gin.Context) {
	session, err := h.tripService.GetActiveTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if session == nil {
		respondJSON(c, http.StatusOK, gin.H{"session": nil})
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"session": toTripResponse(session)})
}

// GetTripHistory handles GET /v1/users/:id/trips
func (h *TripHandler) GetTripHistory(c *gin.Context) {
	sessions, err := h.tripService.GetTripHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripResponse, 0, len(sessions))
	for _, session := range sessions {
		response = append(response, toTripResponse(session))
	}

	respondJSON(c, http.StatusOK, response)
}

// NearbyTrips handles GET /v1/trips/nearby
func (h *TripHandler) NearbyTrips(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required"})
		return
	}

	radiusKm := 2.0
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "radius_km must be a positive number"})
			return
		}
		radiusKm = parsed
	}

	positions, err := h.tripService.NearbyTrips(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"trips": positions})
}

func toTripResponse(session *domain.TripSession) TripResponse {
	response := TripResponse{
		TripID:           session.ID,
		UserID:           session.UserID,
		RouteID:          session.RouteID,
		Status:           string(session.Status),
		CurrentLegIndex:  session.CurrentLegIndex,
		EstimatedArrival: formatTime(session.EstimatedArrival),
		StartedAt:        formatTime(session.StartedAt),
		CompletedAt:      formatTime(session.CompletedAt),
		EndReason:        session.EndReason,
		CancelReason:     session.CancelReason,
	}

	for _, lp := range session.Legs {
		response.Legs = append(response.Legs, LegProgressResponse{
			LegOrder:             lp.LegSeq,
			Status:               string(lp.Status),
			TransferAlertSent:    lp.TransferAlertSent,
			TransferImminentSent: lp.TransferImminentSent,
			DestinationAlertSent: lp.DestinationAlertSent,
			StartedAt:            formatTime(lp.StartedAt),
			EndedAt:              formatTime(lp.EndedAt),
		})
	}

	if session.LastPosition != nil {
		response.LastPosition = &PositionResponse{
			Lat:       session.LastPosition.Lat,
			Lng:       session.LastPosition.Lng,
			AccuracyM: session.LastPosition.AccuracyM,
			Timestamp: formatTime(session.LastPosition.Timestamp),
		}
	}

	return response
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
