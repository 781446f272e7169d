// README: Trip handlers for create/list/get, ending, billing and the transition log.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type createTripReq struct {
	SourceLat      *float64 `json:"source_lat"`
	SourceLon      *float64 `json:"source_lon"`
	DestinationLat *float64 `json:"destination_lat"`
	DestinationLon *float64 `json:"destination_lon"`
	Passenger      string   `json:"passenger"`
	Driver         string   `json:"driver"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SourceLat == nil || req.SourceLon == nil || req.DestinationLat == nil || req.DestinationLon == nil {
		writeError(c, http.StatusBadRequest, "missing fields: source and destination are required")
		return
	}
	t, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		Source:      types.Point{Lat: *req.SourceLat, Lng: *req.SourceLon},
		Destination: types.Point{Lat: *req.DestinationLat, Lng: *req.DestinationLon},
		PassengerID: types.ID(req.Passenger),
		DriverID:    types.ID(req.Driver),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newTripView(t))
}

// List handles GET /trips?status=.
func (h *TripHandler) List(c *gin.Context) {
	var status *trip.Status
	if s := c.Query("status"); s != "" {
		v := trip.Status(s)
		status = &v
	}
	trips, err := h.trips.List(c.Request.Context(), status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]tripView, len(trips))
	for i, t := range trips {
		out[i] = newTripView(t)
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *TripHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	t, err := h.trips.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newTripView(t))
}

// End handles PUT /trips/:id/ending.
func (h *TripHandler) End(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	t, err := h.trips.End(c.Request.Context(), trip.EndCommand{TripID: types.ID(id)})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newTripView(t))
}

func (h *TripHandler) Bill(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	b, err := h.trips.Bill(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newBillView(b))
}

// Events handles GET /trips/:id/events, the trip's transition log.
func (h *TripHandler) Events(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	events, err := h.trips.Events(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newEventViews(events))
}
