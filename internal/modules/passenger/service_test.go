package passenger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/unrecano/taxi24/internal/apperrors"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/store/memory"
	"github.com/unrecano/taxi24/internal/types"
)

func TestService_RegisterAndGet(t *testing.T) {
	ctx := context.Background()
	svc := passenger.NewService(memory.New().Passengers())

	p, err := svc.Register(ctx, passenger.Passenger{Name: " Ana Torres ", Position: types.Point{Lat: -6.866, Lng: -79.822}})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.ID == "" || p.Name != "Ana Torres" || p.CreatedAt.IsZero() {
		t.Fatalf("unexpected passenger %+v", p)
	}

	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Position != p.Position {
		t.Fatalf("position %v, want %v", got.Position, p.Position)
	}
	if _, err := svc.Get(ctx, "ghost"); !errors.Is(err, passenger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := passenger.NewService(memory.New().Passengers())
	cases := []passenger.Passenger{
		{Name: "   ", Position: types.Point{}},
		{Name: "X", Position: types.Point{Lat: -95}},
	}
	for i, in := range cases {
		if _, err := svc.Register(context.Background(), in); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestService_ListInsertionOrder(t *testing.T) {
	ctx := context.Background()
	svc := passenger.NewService(memory.New().Passengers())
	for _, name := range []string{"Ana", "Pedro", "Lucia"} {
		if _, err := svc.Register(ctx, passenger.Passenger{Name: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Name != "Ana" || list[2].Name != "Lucia" {
		t.Fatalf("unexpected list order")
	}
}

func TestService_SetPosition(t *testing.T) {
	ctx := context.Background()
	svc := passenger.NewService(memory.New().Passengers())
	p, _ := svc.Register(ctx, passenger.Passenger{Name: "Ana"})

	dest := types.Point{Lat: -6.771374, Lng: -79.840881}
	if err := svc.SetPosition(ctx, p.ID, dest); err != nil {
		t.Fatalf("set position: %v", err)
	}
	got, _ := svc.Get(ctx, p.ID)
	if got.Position != dest {
		t.Fatalf("position %v, want %v", got.Position, dest)
	}
	if err := svc.SetPosition(ctx, "ghost", dest); !errors.Is(err, passenger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.SetPosition(ctx, p.ID, types.Point{Lng: 181}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
