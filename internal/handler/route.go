package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"waka/internal/domain"
	"waka/internal/service"
)

// RouteHandler handles HTTP requests for route registration/lookup.
type RouteHandler struct {
	routeService *service.RouteService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(routeService *service.RouteService) *RouteHandler {
	return &RouteHandler{routeService: routeService}
}

// WaypointPayload is a waypoint in route payloads.
type WaypointPayload struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name,omitempty"`
}

// LegPayload is one leg in route payloads.
type LegPayload struct {
	Seq              int             `json:"seq"`
	Mode             string          `json:"mode"`
	From             WaypointPayload `json:"from"`
	To               WaypointPayload `json:"to"`
	DistanceMeters   float64         `json:"distance_meters"`
	DurationSeconds  int64           `json:"duration_seconds"`
	FareMin          float64         `json:"fare_min,omitempty"`
	FareMax          float64         `json:"fare_max,omitempty"`
	TransferRequired bool            `json:"transfer_required"`
	WaitSeconds      int64           `json:"transfer_wait_seconds,omitempty"`
}

// RoutePayload is the route registration payload and the lookup response.
type RoutePayload struct {
	ID   string       `json:"id"`
	Name string       `json:"name,omitempty"`
	Legs []LegPayload `json:"legs"`
}

// RegisterRoute handles POST /v1/routes
func (h *RouteHandler) RegisterRoute(c *gin.Context) {
	var payload RoutePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if payload.ID == "" {
		payload.ID = uuid.New().String()
	}

	route := toDomainRoute(payload)
	if err := h.routeService.Register(c.Request.Context(), route); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRoutePayload(route))
}

// GetRoute handles GET /v1/routes/:id
func (h *RouteHandler) GetRoute(c *gin.Context) {
	route, err := h.routeService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRoutePayload(route))
}

func toDomainRoute(payload RoutePayload) *domain.Route {
	route := &domain.Route{ID: payload.ID, Name: payload.Name}
	for _, lp := range payload.Legs {
		route.Legs = append(route.Legs, domain.Leg{
			RouteID:          payload.ID,
			Seq:              lp.Seq,
			Mode:             domain.TransportMode(lp.Mode),
			From:             domain.Waypoint{Lat: lp.From.Lat, Lng: lp.From.Lng, Name: lp.From.Name},
			To:               domain.Waypoint{Lat: lp.To.Lat, Lng: lp.To.Lng, Name: lp.To.Name},
			DistanceMeters:   lp.DistanceMeters,
			ExpectedDuration: time.Duration(lp.DurationSeconds) * time.Second,
			FareMin:          lp.FareMin,
			FareMax:          lp.FareMax,
			TransferRequired: lp.TransferRequired,
			TransferWait:     time.Duration(lp.WaitSeconds) * time.Second,
		})
	}
	return route
}

func toRoutePayload(route *domain.Route) RoutePayload {
	payload := RoutePayload{ID: route.ID, Name: route.Name}
	for _, leg := range route.Legs {
		payload.Legs = append(payload.Legs, LegPayload{
			Seq:              leg.Seq,
			Mode:             string(leg.Mode),
			From:             WaypointPayload{Lat: leg.From.Lat, Lng: leg.From.Lng, Name: leg.From.Name},
			To:               WaypointPayload{Lat: leg.To.Lat, Lng: leg.To.Lng, Name: leg.To.Name},
			DistanceMeters:   leg.DistanceMeters,
			DurationSeconds:  int64(leg.ExpectedDuration.Seconds()),
			FareMin:          leg.FareMin,
			FareMax:          leg.FareMax,
			TransferRequired: leg.TransferRequired,
			WaitSeconds:      int64(leg.TransferWait.Seconds()),
		})
	}
	return payload
}
