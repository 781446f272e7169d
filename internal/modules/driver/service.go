// README: Driver registry: status/proximity queries and the status/position
// mutations the trip lifecycle relies on.
package driver

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/unrecano/taxi24/internal/apperrors"
	"github.com/unrecano/taxi24/internal/geo"
	"github.com/unrecano/taxi24/internal/types"
)

var (
	ErrNotFound     = fmt.Errorf("driver %w", apperrors.ErrNotFound)
	ErrConflict     = fmt.Errorf("driver status %w", apperrors.ErrConflict)
	ErrInvalidInput = fmt.Errorf("driver: %w", apperrors.ErrInvalidInput)
)

// Store is the persistence collaborator for drivers. Lists return drivers in
// insertion order (created_at, then id).
type Store interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	List(ctx context.Context, status *Status) ([]*Driver, error)
	// ListCandidates returns the drivers whose id is in ids or whose position
	// was written after revision since.
	ListCandidates(ctx context.Context, ids []types.ID, since int64, status *Status) ([]*Driver, error)
	// Save inserts or replaces d and stamps d.PositionRev.
	Save(ctx context.Context, d *Driver) error
	// CompareAndSetStatus moves id from one status to another and reports
	// false when the driver is missing or no longer in status from.
	CompareAndSetStatus(ctx context.Context, id types.ID, from, to Status) (bool, error)
	SetPosition(ctx context.Context, id types.ID, p types.Point) error
}

// Hits is the answer of an Index lookup. Every driver whose latest position
// revision is at most Watermark is indexed at that position, so drivers
// missing from IDs are only unknown if they moved after Watermark. Synced is
// false until the index has been fully loaded once.
type Hits struct {
	IDs       []types.ID
	Watermark int64
	Synced    bool
}

// Index is an optional spatial pre-filter fed with committed positions.
type Index interface {
	// Upsert records p for id unless a newer revision is already indexed.
	Upsert(ctx context.Context, id types.ID, p types.Point, rev int64) error
	// Candidates returns a superset of the indexed ids within radiusKm of p.
	Candidates(ctx context.Context, p types.Point, radiusKm float64) (Hits, error)
	// MarkSynced raises the watermark to rev.
	MarkSynced(ctx context.Context, rev int64) error
}

type Registry struct {
	store Store
	index Index
}

// NewRegistry builds a registry; index may be nil.
func NewRegistry(store Store, index Index) *Registry {
	return &Registry{store: store, index: index}
}

func (r *Registry) Get(ctx context.Context, id types.ID) (*Driver, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidInput)
	}
	return r.store.Get(ctx, id)
}

func (r *Registry) List(ctx context.Context, f Filter) ([]*Driver, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *f.Status)
	}
	if f.Near != nil {
		if err := geo.ValidatePoint(f.Near.Point); err != nil {
			return nil, err
		}
		if err := geo.ValidateRadius(f.Near.RadiusKm); err != nil {
			return nil, err
		}
	}

	if f.Near == nil {
		return r.store.List(ctx, f.Status)
	}
	drivers, err := r.candidates(ctx, *f.Near, f.Status)
	if err != nil {
		return nil, err
	}
	return geo.WithinRadius(drivers, position, f.Near.Point, f.Near.RadiusKm), nil
}

// ListNear returns the drivers within radiusKm of (lat, lng), optionally
// restricted to one status.
func (r *Registry) ListNear(ctx context.Context, lat, lng, radiusKm float64, status *Status) ([]*Driver, error) {
	return r.List(ctx, Filter{
		Status: status,
		Near:   &Near{Point: types.Point{Lat: lat, Lng: lng}, RadiusKm: radiusKm},
	})
}

// ClosestAvailable returns AVAILABLE drivers within radiusKm of p, closest
// first. Ties keep insertion order.
func (r *Registry) ClosestAvailable(ctx context.Context, p types.Point, radiusKm float64) ([]*Driver, error) {
	available := StatusAvailable
	drivers, err := r.List(ctx, Filter{Status: &available, Near: &Near{Point: p, RadiusKm: radiusKm}})
	if err != nil {
		return nil, err
	}
	geo.SortByDistance(drivers, position, p)
	return drivers, nil
}

// candidates narrows the store read to the index hits plus every driver that
// moved after the index watermark. Without a synced index every stored
// driver is a candidate.
func (r *Registry) candidates(ctx context.Context, n Near, status *Status) ([]*Driver, error) {
	if r.index != nil {
		hits, err := r.index.Candidates(ctx, n.Point, n.RadiusKm)
		switch {
		case err != nil:
			log.Printf("driver index lookup failed, falling back to full scan: %v", err)
		case hits.Synced:
			return r.store.ListCandidates(ctx, hits.IDs, hits.Watermark, status)
		}
	}
	return r.store.List(ctx, status)
}

// Register validates and persists a new driver, AVAILABLE unless a status is
// given, and adds it to the position index.
func (r *Registry) Register(ctx context.Context, d Driver) (*Driver, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := geo.ValidatePoint(d.Position); err != nil {
		return nil, err
	}
	if d.Status == "" {
		d.Status = StatusAvailable
	}
	if !d.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, d.Status)
	}
	if d.ID == "" {
		d.ID = types.NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.Geohash = geo.Geohash(d.Position)

	if err := r.store.Save(ctx, &d); err != nil {
		return nil, err
	}
	r.upsert(ctx, &d)
	return &d, nil
}

// SetStatus moves a driver from one status to another. It fails with
// ErrNotFound for unknown drivers and ErrConflict when the driver is no
// longer in status from.
func (r *Registry) SetStatus(ctx context.Context, id types.ID, from, to Status) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: unknown status transition %q -> %q", ErrInvalidInput, from, to)
	}
	ok, err := r.store.CompareAndSetStatus(ctx, id, from, to)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := r.store.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// SetPosition relocates a driver. The index is not touched; callers running
// inside a transaction call Reindex once the write is committed.
func (r *Registry) SetPosition(ctx context.Context, id types.ID, p types.Point) error {
	if err := geo.ValidatePoint(p); err != nil {
		return err
	}
	return r.store.SetPosition(ctx, id, p)
}

// Reindex pushes the committed position of id to the index. Failures are
// logged: a driver the index misses is still found through its position
// revision.
func (r *Registry) Reindex(ctx context.Context, id types.ID) {
	if r.index == nil {
		return
	}
	d, err := r.store.Get(ctx, id)
	if err != nil {
		log.Printf("driver index reload %s failed: %v", id, err)
		return
	}
	r.upsert(ctx, d)
}

func (r *Registry) upsert(ctx context.Context, d *Driver) {
	if r.index == nil {
		return
	}
	if err := r.index.Upsert(ctx, d.ID, d.Position, d.PositionRev); err != nil {
		log.Printf("driver index upsert %s failed: %v", d.ID, err)
	}
}

// SyncIndex loads every stored driver position into the index, then raises
// its watermark to the newest revision loaded.
func (r *Registry) SyncIndex(ctx context.Context) error {
	if r.index == nil {
		return nil
	}
	drivers, err := r.store.List(ctx, nil)
	if err != nil {
		return err
	}
	var mark int64
	for _, d := range drivers {
		if err := r.index.Upsert(ctx, d.ID, d.Position, d.PositionRev); err != nil {
			return fmt.Errorf("index driver %s: %w", d.ID, err)
		}
		if d.PositionRev > mark {
			mark = d.PositionRev
		}
	}
	if err := r.index.MarkSynced(ctx, mark); err != nil {
		return fmt.Errorf("mark driver index synced: %w", err)
	}
	log.Printf("driver index synced: %d drivers up to revision %d", len(drivers), mark)
	return nil
}

// RunIndexSync re-syncs the index every interval until ctx is done, which
// keeps the set of drivers read past the watermark small.
func (r *Registry) RunIndexSync(ctx context.Context, interval time.Duration) {
	if r.index == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.SyncIndex(ctx); err != nil {
				log.Printf("driver index sync failed: %v", err)
			}
		}
	}
}
