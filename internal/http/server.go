// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unrecano/taxi24/internal/http/handlers"
	"github.com/unrecano/taxi24/internal/http/middleware"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/modules/trip"
)

type ServerDeps struct {
	Drivers    *driver.Registry
	Passengers *passenger.Service
	Trips      *trip.Service
	// NearRadiusKm is the default search radius of proximity endpoints.
	NearRadiusKm float64
}

type Server struct {
	drivers    *handlers.DriverHandler
	passengers *handlers.PassengerHandler
	trips      *handlers.TripHandler
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		drivers:    handlers.NewDriverHandler(deps.Drivers, deps.NearRadiusKm),
		passengers: handlers.NewPassengerHandler(deps.Passengers, deps.Trips, deps.NearRadiusKm),
		trips:      handlers.NewTripHandler(deps.Trips),
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	r.GET("/drivers", s.drivers.List)
	r.POST("/drivers", s.drivers.Create)
	r.GET("/drivers/:id", s.drivers.Get)

	r.GET("/passengers", s.passengers.List)
	r.POST("/passengers", s.passengers.Create)
	r.GET("/passengers/:id", s.passengers.Get)
	r.GET("/passengers/:id/closest_driver", s.passengers.ClosestDrivers)

	r.GET("/trips", s.trips.List)
	r.POST("/trips", s.trips.Create)
	r.GET("/trips/:id", s.trips.Get)
	r.PUT("/trips/:id/ending", s.trips.End)
	r.GET("/trips/:id/bill", s.trips.Bill)
	r.GET("/trips/:id/events", s.trips.Events)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
