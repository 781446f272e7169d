// README: Pricing service computes trip costs from distance.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/unrecano/taxi24/internal/apperrors"
	"github.com/unrecano/taxi24/internal/types"
)

var ErrRateNotFound = fmt.Errorf("pricing rate %w", apperrors.ErrNotFound)

// RateSource looks up a stored rate by name.
type RateSource interface {
	GetRate(ctx context.Context, name string) (Rate, error)
}

// RateStore is a RateSource that also persists rates.
type RateStore interface {
	RateSource
	SaveRate(ctx context.Context, r Rate) error
}

// SeedRate stores r unless a rate with the same name exists already, and
// reports whether it wrote.
func SeedRate(ctx context.Context, store RateStore, r Rate) (bool, error) {
	_, err := store.GetRate(ctx, r.Name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrRateNotFound) {
		return false, err
	}
	if err := store.SaveRate(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}

type Service struct {
	source   RateSource
	fallback Rate
}

// NewService prices with the stored DefaultRateName rate, or with fallback
// when source is nil or has no such rate.
func NewService(source RateSource, fallback Rate) *Service {
	return &Service{source: source, fallback: fallback}
}

// Estimate returns BaseFare + round(distanceKm * PerKm).
func (s *Service) Estimate(ctx context.Context, distanceKm float64) (types.Money, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return types.Money{}, fmt.Errorf("distance must be a non-negative number of km: %w", apperrors.ErrInvalidInput)
	}
	rate, err := s.rate(ctx)
	if err != nil {
		return types.Money{}, err
	}
	return Quote(rate, distanceKm), nil
}

func (s *Service) rate(ctx context.Context) (Rate, error) {
	if s.source == nil {
		return s.fallback, nil
	}
	rate, err := s.source.GetRate(ctx, DefaultRateName)
	if errors.Is(err, ErrRateNotFound) {
		return s.fallback, nil
	}
	if err != nil {
		log.Printf("pricing: load rate %q: %v", DefaultRateName, err)
		return Rate{}, err
	}
	return rate, nil
}

// Quote applies rate to a distance.
func Quote(rate Rate, distanceKm float64) types.Money {
	return types.Money{
		Amount:   rate.BaseFare + int64(math.Round(distanceKm*float64(rate.PerKm))),
		Currency: rate.Currency,
	}
}
