// README: Passenger service (register, lookup, relocation).
package passenger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unrecano/taxi24/internal/apperrors"
	"github.com/unrecano/taxi24/internal/geo"
	"github.com/unrecano/taxi24/internal/types"
)

var (
	ErrNotFound     = fmt.Errorf("passenger %w", apperrors.ErrNotFound)
	ErrInvalidInput = fmt.Errorf("passenger: %w", apperrors.ErrInvalidInput)
)

// Store persists passengers. List returns them in insertion order.
type Store interface {
	Get(ctx context.Context, id types.ID) (*Passenger, error)
	List(ctx context.Context) ([]*Passenger, error)
	Save(ctx context.Context, p *Passenger) error
	SetPosition(ctx context.Context, id types.ID, p types.Point) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Passenger, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidInput)
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Passenger, error) {
	return s.store.List(ctx)
}

func (s *Service) Register(ctx context.Context, p Passenger) (*Passenger, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := geo.ValidatePoint(p.Position); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = types.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := s.store.Save(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) SetPosition(ctx context.Context, id types.ID, p types.Point) error {
	if err := geo.ValidatePoint(p); err != nil {
		return err
	}
	return s.store.SetPosition(ctx, id, p)
}
