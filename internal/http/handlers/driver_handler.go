// README: Driver handlers for listing, lookup and registration.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unrecano/taxi24/internal/apperrors"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/types"
)

type DriverHandler struct {
	drivers  *driver.Registry
	radiusKm float64
}

// NewDriverHandler serves the driver endpoints; radiusKm is the search
// radius used when a listing gives a position without a distance.
func NewDriverHandler(drivers *driver.Registry, radiusKm float64) *DriverHandler {
	return &DriverHandler{drivers: drivers, radiusKm: radiusKm}
}

// List handles GET /drivers?status=&lat=&lon=&distance=.
func (h *DriverHandler) List(c *gin.Context) {
	f, err := h.filter(c)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	drivers, err := h.drivers.List(c.Request.Context(), f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newDriverViews(drivers))
}

func (h *DriverHandler) filter(c *gin.Context) (driver.Filter, error) {
	var f driver.Filter
	if s := c.Query("status"); s != "" {
		status := driver.Status(s)
		f.Status = &status
	}

	lat, hasLat, err := queryFloat(c, "lat")
	if err != nil {
		return f, err
	}
	lon, hasLon, err := queryFloat(c, "lon")
	if err != nil {
		return f, err
	}
	distance, hasDistance, err := queryFloat(c, "distance")
	if err != nil {
		return f, err
	}
	if hasLat != hasLon || (hasDistance && !hasLat) {
		return f, fmt.Errorf("lat and lon must be given together: %w", apperrors.ErrInvalidInput)
	}
	if hasLat {
		if !hasDistance {
			distance = h.radiusKm
		}
		f.Near = &driver.Near{Point: types.Point{Lat: lat, Lng: lon}, RadiusKm: distance}
	}
	return f, nil
}

func (h *DriverHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing driver id")
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newDriverView(d))
}

type createDriverReq struct {
	DNI          string   `json:"dni"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Plate        string   `json:"plate"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	Status       string   `json:"status"`
}

func (h *DriverHandler) Create(c *gin.Context) {
	var req createDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(c, http.StatusBadRequest, "missing fields: lat and lon are required")
		return
	}
	d, err := h.drivers.Register(c.Request.Context(), driver.Driver{
		DNI:          req.DNI,
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		Model:        req.Model,
		Plate:        req.Plate,
		Position:     types.Point{Lat: *req.Lat, Lng: *req.Lon},
		Status:       driver.Status(req.Status),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newDriverView(d))
}
