// README: PostgreSQL repository tests (require TAXI24_TEST_DSN).
package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unrecano/taxi24/internal/apperrors"
	"github.com/unrecano/taxi24/internal/fixtures"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/pricing"
	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/types"
)

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/taxi24?sslmode=disable":   "pgx5://u:p@localhost:5432/taxi24?sslmode=disable",
		"postgresql://u:p@localhost:5432/taxi24?sslmode=disable": "pgx5://u:p@localhost:5432/taxi24?sslmode=disable",
		"pgx5://already":                                         "pgx5://already",
	}
	for in, want := range tests {
		if got := MigrateURL(in); got != want {
			t.Errorf("MigrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func setupTestRepository(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TAXI24_TEST_DSN")
	if dsn == "" {
		t.Skip("TAXI24_TEST_DSN not set; skipping DB-backed tests")
	}

	root, err := repoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	if err := MigrateUp(dsn, filepath.Join(root, "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(ctx, "TRUNCATE TABLE trip_state_events, bills, trips, passengers, drivers, pricing_rates"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return New(db), db
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func TestRepository_Lifecycle(t *testing.T) {
	repo, db := setupTestRepository(t)
	ctx := context.Background()

	set, err := fixtures.LoadCore(ctx, repo)
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	rates := pricing.NewStore(db)
	if err := rates.SaveRate(ctx, pricing.Rate{Name: pricing.DefaultRateName, BaseFare: 350, PerKm: 120, Currency: "PEN"}); err != nil {
		t.Fatalf("save rate: %v", err)
	}
	svc := trip.NewService(repo, pricing.NewService(rates, pricing.Rate{}), nil, nil)

	available := driver.StatusAvailable
	drivers, err := repo.Drivers().List(ctx, &available)
	if err != nil {
		t.Fatalf("list drivers: %v", err)
	}
	if len(drivers) != 4 || drivers[0].ID != set.Drivers[0].ID {
		t.Fatalf("expected 4 available drivers in insertion order, got %d", len(drivers))
	}

	src := set.Drivers[0].Position
	created, err := svc.Create(ctx, trip.CreateCommand{
		Source: src, Destination: src,
		PassengerID: set.Passengers[0].ID,
		DriverID:    set.Drivers[0].ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Cost.Amount != 350 || created.Cost.Currency != "PEN" {
		t.Fatalf("expected stored rate to apply, got %v", created.Cost)
	}

	active := set.Trips[0]
	ended, err := svc.End(ctx, trip.EndCommand{TripID: active.ID})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != trip.StatusEnd {
		t.Fatalf("expected END, got %s", ended.Status)
	}
	d, _ := repo.Drivers().Get(ctx, active.DriverID)
	if d.Status != driver.StatusAvailable || d.Position != active.Destination {
		t.Fatalf("unexpected driver after end %+v", d)
	}
	p, _ := repo.Passengers().Get(ctx, active.PassengerID)
	if p.Position != active.Destination {
		t.Fatalf("unexpected passenger position %v", p.Position)
	}
	if _, err := svc.Bill(ctx, active.ID); err != nil {
		t.Fatalf("bill: %v", err)
	}
	if _, err := svc.End(ctx, trip.EndCommand{TripID: active.ID}); !errors.Is(err, trip.ErrInvalidState) {
		t.Fatalf("second end: expected ErrInvalidState, got %v", err)
	}
	events, err := svc.Events(ctx, active.ID)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one event, got %d (%v)", len(events), err)
	}
}

func TestRepository_RollbackOnError(t *testing.T) {
	repo, _ := setupTestRepository(t)
	ctx := context.Background()
	set, err := fixtures.LoadCore(ctx, repo)
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}

	boom := errors.New("boom")
	err = repo.InTx(ctx, func(tx trip.Tx) error {
		if _, err := tx.Drivers().CompareAndSetStatus(ctx, set.Drivers[0].ID, driver.StatusAvailable, driver.StatusUnavailable); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	d, _ := repo.Drivers().Get(ctx, set.Drivers[0].ID)
	if d.Status != driver.StatusAvailable {
		t.Fatalf("rolled back status change leaked: %s", d.Status)
	}
}

func TestRepository_ConcurrentCreateSameDriver(t *testing.T) {
	repo, _ := setupTestRepository(t)
	ctx := context.Background()
	set, err := fixtures.LoadCore(ctx, repo)
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	svc := trip.NewService(repo, pricing.NewService(nil, pricing.Rate{BaseFare: 350, PerKm: 120, Currency: "PEN"}), nil, nil)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(ctx, trip.CreateCommand{
				Source:      set.Drivers[0].Position,
				Destination: types.Point{Lat: -6.77, Lng: -79.84},
				PassengerID: set.Passengers[i%2].ID,
				DriverID:    set.Drivers[0].ID,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, apperrors.ErrConflict) && !errors.Is(err, apperrors.ErrInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}
}

func TestRepository_PositionRevisions(t *testing.T) {
	repo, _ := setupTestRepository(t)
	ctx := context.Background()

	set, err := fixtures.LoadCore(ctx, repo)
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	drivers := repo.Drivers()
	all, err := drivers.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var mark int64
	for _, d := range all {
		if d.PositionRev <= mark {
			t.Fatalf("revisions must grow in insertion order, got %d after %d", d.PositionRev, mark)
		}
		mark = d.PositionRev
	}

	moved := set.Drivers[2].ID
	if err := drivers.SetPosition(ctx, moved, types.Point{Lat: -6.75, Lng: -79.90}); err != nil {
		t.Fatalf("set position: %v", err)
	}
	got, err := drivers.ListCandidates(ctx, []types.ID{set.Drivers[0].ID}, mark, nil)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(got) != 2 || got[0].ID != set.Drivers[0].ID || got[1].ID != moved {
		t.Fatalf("expected the named driver and the moved one, got %d drivers", len(got))
	}
	if got[1].PositionRev <= mark {
		t.Fatalf("moved driver kept revision %d, watermark %d", got[1].PositionRev, mark)
	}

	available := driver.StatusAvailable
	got, err = drivers.ListCandidates(ctx, []types.ID{set.Drivers[3].ID}, got[1].PositionRev, &available)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unavailable driver passed the status filter: %+v", got[0])
	}
}
