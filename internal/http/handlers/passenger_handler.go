// README: Passenger handlers (list/get/create and closest drivers).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/types"
)

type PassengerHandler struct {
	passengers *passenger.Service
	trips      *trip.Service
	radiusKm   float64
}

func NewPassengerHandler(passengers *passenger.Service, trips *trip.Service, radiusKm float64) *PassengerHandler {
	return &PassengerHandler{passengers: passengers, trips: trips, radiusKm: radiusKm}
}

func (h *PassengerHandler) List(c *gin.Context) {
	list, err := h.passengers.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]passengerView, len(list))
	for i, p := range list {
		out[i] = newPassengerView(p)
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *PassengerHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing passenger id")
		return
	}
	p, err := h.passengers.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newPassengerView(p))
}

type createPassengerReq struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

func (h *PassengerHandler) Create(c *gin.Context) {
	var req createPassengerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(c, http.StatusBadRequest, "missing fields: lat and lon are required")
		return
	}
	p, err := h.passengers.Register(c.Request.Context(), passenger.Passenger{
		Name:     req.Name,
		Position: types.Point{Lat: *req.Lat, Lng: *req.Lon},
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newPassengerView(p))
}

// ClosestDrivers handles GET /passengers/:id/closest_driver?distance=.
func (h *PassengerHandler) ClosestDrivers(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing passenger id")
		return
	}
	radius, ok, err := queryFloat(c, "distance")
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !ok {
		radius = h.radiusKm
	}
	drivers, err := h.trips.ClosestAvailableDrivers(c.Request.Context(), types.ID(id), radius)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newDriverViews(drivers))
}
