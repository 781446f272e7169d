// README: Bench cases: environment checks, the trip flow over the core fixtures, consistency, race and perf checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/unrecano/taxi24/internal/fixtures"
	"github.com/unrecano/taxi24/internal/geo"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/types"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

var schemaTables = []string{"drivers", "passengers", "trips", "bills", "trip_state_events", "pricing_rates", "driver_position_clock", "schema_migrations"}

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	set   *fixtures.Set

	// tripID is the trip created by the flow cases.
	tripID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

type driverResp struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Status string  `json:"status"`
}

type tripResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Cost   string `json:"cost"`
}

func NewRunner(cfg Config) (*Runner, error) {
	set, err := fixtures.Core()
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		set:   set,
	}, nil
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	plaza := r.set.Drivers[0].Position
	juan := r.set.Drivers[0]
	ana := r.set.Passengers[0]

	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusSkip, Note: "db not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusSkip, Note: "redis not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Schema: tables exist", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusSkip, Note: "db not configured"}
			}
			for _, t := range schemaTables {
				var exists bool
				err := r.db.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
					t,
				).Scan(&exists)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if !exists {
					return Result{Status: statusFail, Note: "missing table: " + t}
				}
			}
			return Result{Status: statusPass}
		}},

		httpCase("API: health", http.MethodGet, base+"/health", nil, http.StatusOK),

		// Drivers
		{Name: "Drivers: list includes the core set", Run: func(ctx context.Context, r *Runner) Result {
			var list []driverResp
			res := r.call(ctx, http.MethodGet, base+"/drivers", nil, http.StatusOK, &list)
			if res.Status == statusPass && len(list) < len(r.set.Drivers) {
				return failf(res, "got %d drivers", len(list))
			}
			return res
		}},
		{Name: "Drivers: status filter", Run: func(ctx context.Context, r *Runner) Result {
			var list []driverResp
			res := r.call(ctx, http.MethodGet, base+"/drivers?status=AVAILABLE", nil, http.StatusOK, &list)
			for _, d := range list {
				if d.Status != "AVAILABLE" {
					return failf(res, "driver %s is %s", d.ID, d.Status)
				}
			}
			return res
		}},
		{Name: "Drivers: within 3 km of the plaza", Run: func(ctx context.Context, r *Runner) Result {
			var list []driverResp
			url := fmt.Sprintf("%s/drivers?lat=%f&lon=%f&distance=3", base, plaza.Lat, plaza.Lng)
			res := r.call(ctx, http.MethodGet, url, nil, http.StatusOK, &list)
			if res.Status != statusPass {
				return res
			}
			for _, d := range list {
				if km := geo.Distance(plaza, types.Point{Lat: d.Lat, Lng: d.Lon}); km > 3 {
					return failf(res, "driver %s is %.3f km away", d.ID, km)
				}
			}
			if len(list) == 0 {
				return failf(res, "no drivers near the plaza")
			}
			return res
		}},
		httpCase("Drivers: unknown -> 404", http.MethodGet, base+"/drivers/no-such-driver", nil, http.StatusNotFound),
		httpCase("Drivers: invalid coords -> 400", http.MethodGet, base+"/drivers?lat=123&lon=456", nil, http.StatusBadRequest),

		// Passengers
		{Name: "Passengers: closest drivers are AVAILABLE", Run: func(ctx context.Context, r *Runner) Result {
			var list []driverResp
			res := r.call(ctx, http.MethodGet, base+"/passengers/"+string(ana.ID)+"/closest_driver", nil, http.StatusOK, &list)
			if res.Status == statusPass && len(list) == 0 {
				return failf(res, "no drivers near %s", ana.Name)
			}
			for i, d := range list {
				if d.Status != "AVAILABLE" {
					return failf(res, "driver %s is %s", d.ID, d.Status)
				}
				if i > 0 && distanceTo(ana.Position, list[i-1]) > distanceTo(ana.Position, d) {
					return failf(res, "drivers not sorted by distance")
				}
			}
			return res
		}},

		// Trip flow
		{Name: "Trips: create", Run: func(ctx context.Context, r *Runner) Result {
			var t tripResp
			res := r.call(ctx, http.MethodPost, base+"/trips", tripBody(ana.Position, plaza, ana.ID, juan.ID), http.StatusCreated, &t)
			if res.Status == statusPass {
				if t.Status != "ACTIVE" {
					return failf(res, "trip is %s", t.Status)
				}
				r.tripID = t.ID
				res.Note += " cost=" + t.Cost
			}
			return res
		}},
		httpCase("Trips: busy driver -> 409", http.MethodPost, base+"/trips", tripBody(ana.Position, plaza, ana.ID, juan.ID), http.StatusConflict),
		httpCase("Trips: missing fields -> 400", http.MethodPost, base+"/trips", map[string]any{}, http.StatusBadRequest),
		{Name: "Trips: end", Run: func(ctx context.Context, r *Runner) Result {
			if r.tripID == "" {
				return Result{Status: statusSkip, Note: "no trip created"}
			}
			var t tripResp
			res := r.call(ctx, http.MethodPut, base+"/trips/"+r.tripID+"/ending", nil, http.StatusOK, &t)
			if res.Status == statusPass && t.Status != "END" {
				return failf(res, "trip is %s", t.Status)
			}
			return res
		}},
		{Name: "Trips: end twice -> 409", Run: func(ctx context.Context, r *Runner) Result {
			if r.tripID == "" {
				return Result{Status: statusSkip, Note: "no trip created"}
			}
			return r.call(ctx, http.MethodPut, base+"/trips/"+r.tripID+"/ending", nil, http.StatusConflict, nil)
		}},
		{Name: "Trips: bill", Run: func(ctx context.Context, r *Runner) Result {
			if r.tripID == "" {
				return Result{Status: statusSkip, Note: "no trip created"}
			}
			return r.call(ctx, http.MethodGet, base+"/trips/"+r.tripID+"/bill", nil, http.StatusOK, nil)
		}},
		{Name: "Trips: driver is AVAILABLE again", Run: func(ctx context.Context, r *Runner) Result {
			var d driverResp
			res := r.call(ctx, http.MethodGet, base+"/drivers/"+string(juan.ID), nil, http.StatusOK, &d)
			if res.Status == statusPass && d.Status != "AVAILABLE" {
				return failf(res, "driver is %s", d.Status)
			}
			return res
		}},

		// Consistency
		{Name: "Consistency: state events recorded", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil || r.tripID == "" {
				return Result{Status: statusSkip, Note: "needs db and a created trip"}
			}
			var n int
			if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM trip_state_events WHERE trip_id=$1", r.tripID).Scan(&n); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			if n != 2 {
				return Result{Status: statusFail, Note: fmt.Sprintf("events=%d", n)}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Consistency: one bill per trip", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil || r.tripID == "" {
				return Result{Status: statusSkip, Note: "needs db and a created trip"}
			}
			var n, version int
			err := r.db.QueryRow(ctx,
				"SELECT (SELECT COUNT(*) FROM bills WHERE trip_id=$1), status_version FROM trips WHERE id=$1",
				r.tripID,
			).Scan(&n, &version)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			if n != 1 || version != 1 {
				return Result{Status: statusFail, Note: fmt.Sprintf("bills=%d status_version=%d", n, version)}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Index: Redis position follows the trip", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusSkip, Note: "redis not configured"}
			}
			pos, err := r.redis.GeoPos(ctx, r.cfg.GeoKey, string(juan.ID)).Result()
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			if len(pos) != 1 || pos[0] == nil {
				return Result{Status: statusFail, Note: "driver not indexed"}
			}
			if km := geo.Distance(plaza, types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}); km > 0.01 {
				return Result{Status: statusFail, Note: fmt.Sprintf("indexed %.3f km from destination", km)}
			}
			return Result{Status: statusPass}
		}},

		// Concurrency
		{Name: "Concurrency: one trip per driver", Run: func(ctx context.Context, r *Runner) Result {
			return concurrentCreate(ctx, r, ana)
		}},

		// Performance
		{Name: "Perf: proximity query throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, fmt.Sprintf("%s/drivers?status=AVAILABLE&lat=%f&lon=%f&distance=3", base, plaza.Lat, plaza.Lng))
		}},
	}
}

func tripBody(src, dst types.Point, passengerID, driverID types.ID) map[string]any {
	return map[string]any{
		"source_lat":      src.Lat,
		"source_lon":      src.Lng,
		"destination_lat": dst.Lat,
		"destination_lon": dst.Lng,
		"passenger":       string(passengerID),
		"driver":          string(driverID),
	}
}

func distanceTo(p types.Point, d driverResp) float64 {
	return geo.Distance(p, types.Point{Lat: d.Lat, Lng: d.Lon})
}

func failf(res Result, format string, args ...any) Result {
	res.Status = statusFail
	res.Note = fmt.Sprintf(format, args...)
	return res
}

func httpCase(name, method, url string, body any, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			return r.call(ctx, method, url, body, want, nil)
		},
	}
}

// call sends one JSON request and decodes the response into out when the
// status matches want.
func (r *Runner) call(ctx context.Context, method, url string, body any, want int, out any) Result {
	status, latency, raw, err := r.send(ctx, method, url, body)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("status=%d", status)
	if status != want {
		return Result{Status: statusFail, Latency: latency, Note: note + " body=" + string(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return Result{Status: statusFail, Latency: latency, Note: "decode: " + err.Error()}
		}
	}
	return Result{Status: statusPass, Latency: latency, Note: note}
}

func (r *Runner) send(ctx context.Context, method, url string, body any) (int, time.Duration, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	return resp.StatusCode, time.Since(start), raw, err
}

// concurrentCreate registers a fresh driver and races cfg.Concurrency trip
// requests for it. Exactly one must succeed.
func concurrentCreate(ctx context.Context, r *Runner, p *passenger.Passenger) Result {
	base := r.cfg.BaseURL
	var d driverResp
	res := r.call(ctx, http.MethodPost, base+"/drivers", map[string]any{
		"dni":   fmt.Sprintf("bench-%d", time.Now().UnixNano()),
		"name":  "Bench Driver",
		"plate": "BEN-000",
		"lat":   p.Position.Lat,
		"lon":   p.Position.Lng,
	}, http.StatusCreated, &d)
	if res.Status != statusPass {
		return res
	}

	body := tripBody(p.Position, p.Position, p.ID, types.ID(d.ID))
	var wg sync.WaitGroup
	var mu sync.Mutex
	succ, conflicts := 0, 0
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _, err := r.send(ctx, http.MethodPost, base+"/trips", body)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch status {
			case http.StatusCreated:
				succ++
			case http.StatusConflict:
				conflicts++
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflicts=%d", succ, conflicts)
	if succ != 1 || conflicts != r.cfg.Concurrency-1 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, url string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.send(ctx, http.MethodGet, url, nil)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}
