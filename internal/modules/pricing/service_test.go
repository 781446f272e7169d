package pricing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/unrecano/taxi24/internal/apperrors"
)

var testRate = Rate{Name: DefaultRateName, BaseFare: 350, PerKm: 120, Currency: "PEN"}

type stubSource struct {
	rate Rate
	err  error
}

func (s stubSource) GetRate(_ context.Context, _ string) (Rate, error) {
	return s.rate, s.err
}

func TestService_Estimate(t *testing.T) {
	tests := []struct {
		name       string
		distanceKm float64
		wantAmount int64
	}{
		{name: "Same point, base fare only", distanceKm: 0, wantAmount: 350},
		{name: "One kilometre", distanceKm: 1, wantAmount: 350 + 120},
		// 2.5 * 120 = 300
		{name: "Fractional distance", distanceKm: 2.5, wantAmount: 650},
		// 0.004 * 120 = 0.48 -> 0
		{name: "Rounds down below half a cent", distanceKm: 0.004, wantAmount: 350},
		// 0.005 * 120 = 0.6 -> 1
		{name: "Rounds up from half a cent", distanceKm: 0.005, wantAmount: 351},
		// 11.1195 * 120 = 1334.34 -> 1334
		{name: "Chiclayo to Lambayeque", distanceKm: 11.1195, wantAmount: 1684},
	}

	s := NewService(nil, testRate)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Estimate(context.Background(), tt.distanceKm)
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if got.Amount != tt.wantAmount {
				t.Errorf("Estimate() = %d, want %d", got.Amount, tt.wantAmount)
			}
			if got.Currency != "PEN" {
				t.Errorf("currency = %q, want PEN", got.Currency)
			}
		})
	}
}

func TestService_EstimateRejectsBadDistance(t *testing.T) {
	s := NewService(nil, testRate)
	for _, d := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := s.Estimate(context.Background(), d); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("distance %v: expected ErrInvalidInput, got %v", d, err)
		}
	}
}

func TestService_EstimateUsesStoredRate(t *testing.T) {
	stored := Rate{Name: DefaultRateName, BaseFare: 100, PerKm: 10, Currency: "USD"}
	s := NewService(stubSource{rate: stored}, testRate)
	got, err := s.Estimate(context.Background(), 3)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if got.Amount != 130 || got.Currency != "USD" {
		t.Fatalf("expected stored rate to apply, got %v", got)
	}
}

func TestService_EstimateFallsBackWhenRateMissing(t *testing.T) {
	s := NewService(stubSource{err: ErrRateNotFound}, testRate)
	got, err := s.Estimate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if got.Amount != 470 {
		t.Fatalf("expected fallback rate, got %v", got)
	}
}

func TestService_EstimatePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	s := NewService(stubSource{err: boom}, testRate)
	if _, err := s.Estimate(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

// memRates is a RateStore over a map.
type memRates struct {
	rates   map[string]Rate
	failGet error
	saves   int
}

func (m *memRates) GetRate(_ context.Context, name string) (Rate, error) {
	if m.failGet != nil {
		return Rate{}, m.failGet
	}
	r, ok := m.rates[name]
	if !ok {
		return Rate{}, ErrRateNotFound
	}
	return r, nil
}

func (m *memRates) SaveRate(_ context.Context, r Rate) error {
	if m.rates == nil {
		m.rates = make(map[string]Rate)
	}
	m.rates[r.Name] = r
	m.saves++
	return nil
}

func TestSeedRate(t *testing.T) {
	ctx := context.Background()
	store := &memRates{}

	wrote, err := SeedRate(ctx, store, testRate)
	if err != nil || !wrote {
		t.Fatalf("first seed: wrote=%v err=%v", wrote, err)
	}

	edited := testRate
	edited.BaseFare = 500
	store.rates[DefaultRateName] = edited
	wrote, err = SeedRate(ctx, store, testRate)
	if err != nil || wrote {
		t.Fatalf("second seed must keep the stored rate: wrote=%v err=%v", wrote, err)
	}
	if store.rates[DefaultRateName].BaseFare != 500 || store.saves != 1 {
		t.Fatalf("stored rate overwritten: %+v after %d saves", store.rates[DefaultRateName], store.saves)
	}

	got, err := NewService(store, Rate{}).Estimate(ctx, 0)
	if err != nil || got.Amount != 500 {
		t.Fatalf("expected the stored rate to price, got %v (%v)", got, err)
	}

	broken := &memRates{failGet: errors.New("connection reset")}
	if _, err := SeedRate(ctx, broken, testRate); err == nil || broken.saves != 0 {
		t.Fatalf("lookup failure must not write, err=%v saves=%d", err, broken.saves)
	}
}
