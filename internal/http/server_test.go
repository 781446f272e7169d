// README: Route table smoke tests for the API gateway.
package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/unrecano/taxi24/internal/fixtures"
	httptransport "github.com/unrecano/taxi24/internal/http"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/location"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/modules/pricing"
	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/store/memory"
)

func newTestHandler(t *testing.T) (http.Handler, *fixtures.Set) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	repo := memory.New()
	set, err := fixtures.LoadCore(ctx, repo)
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	registry := driver.NewRegistry(repo.Drivers(), location.NewTreeIndex())
	if err := registry.SyncIndex(ctx); err != nil {
		t.Fatalf("sync index: %v", err)
	}
	pricer := pricing.NewService(nil, pricing.Rate{BaseFare: 350, PerKm: 120, Currency: "PEN"})
	srv := httptransport.NewServer(httptransport.ServerDeps{
		Drivers:      registry,
		Passengers:   passenger.NewService(repo.Passengers()),
		Trips:        trip.NewService(repo, pricer, registry, nil),
		NearRadiusKm: 3,
	})
	return srv.Routes(), set
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	w := serve(h, http.MethodGet, "/health")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", w.Code, w.Body.String())
	}
}

func TestRoutes(t *testing.T) {
	h, set := newTestHandler(t)
	active := string(set.Trips[0].ID)
	ana := string(set.Passengers[0].ID)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/drivers", http.StatusOK},
		{http.MethodGet, "/drivers?status=AVAILABLE&lat=-6.862689&lon=-79.818674", http.StatusOK},
		{http.MethodGet, "/drivers/" + string(set.Drivers[0].ID), http.StatusOK},
		{http.MethodGet, "/passengers", http.StatusOK},
		{http.MethodGet, "/passengers/" + ana, http.StatusOK},
		{http.MethodGet, "/passengers/" + ana + "/closest_driver", http.StatusOK},
		{http.MethodGet, "/trips", http.StatusOK},
		{http.MethodGet, "/trips/" + active, http.StatusOK},
		{http.MethodGet, "/trips/" + active + "/bill", http.StatusNotFound},
		{http.MethodPut, "/trips/" + active + "/ending", http.StatusOK},
		{http.MethodGet, "/trips/" + active + "/bill", http.StatusOK},
		{http.MethodGet, "/trips/" + active + "/events", http.StatusOK},
		{http.MethodGet, "/trips/missing/events", http.StatusNotFound},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := serve(h, tc.method, tc.path)
		if w.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d: %s", tc.method, tc.path, tc.want, w.Code, w.Body.String())
		}
	}
}

func TestIndexedProximityAfterEnding(t *testing.T) {
	h, set := newTestHandler(t)
	active := set.Trips[0]
	if w := serve(h, http.MethodPut, "/trips/"+string(active.ID)+"/ending"); w.Code != http.StatusOK {
		t.Fatalf("end trip: %d", w.Code)
	}

	// Rosa Vega is now AVAILABLE at the destination, next to Carlos Diaz.
	w := serve(h, http.MethodGet, "/drivers?status=AVAILABLE&lat=-6.771374&lon=-79.840881&distance=1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, string(active.DriverID)) || !strings.Contains(body, "Carlos Diaz") {
		t.Fatalf("expected relocated driver in indexed search, got %s", body)
	}
}
