// README: In-process driver position index backed by an R-tree.
package location

import (
	"context"
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/types"
)

const (
	kmPerDegree = 6371.0 * math.Pi / 180
	// rtreego intersection is strict, so entries get a tiny extent (~1cm).
	entryTolerance = 1e-7
	boxSlack       = 1.01
	boxSlackDeg    = 1e-6
)

type treeEntry struct {
	id   types.ID
	rev  int64
	rect rtreego.Rect
}

func (e *treeEntry) Bounds() rtreego.Rect {
	return e.rect
}

// TreeIndex keeps driver positions in a 2-D R-tree keyed by (lng, lat).
// Lookups use a degree bounding box around the search circle and fall back
// to every stored id when the box would cross a pole or the antimeridian.
// An upsert older than the entry already held is ignored.
type TreeIndex struct {
	mu      sync.RWMutex
	tree    *rtreego.Rtree
	entries map[types.ID]*treeEntry
	mark    int64
	synced  bool
}

var _ driver.Index = (*TreeIndex)(nil)

func NewTreeIndex() *TreeIndex {
	return &TreeIndex{
		tree:    rtreego.NewTree(2, 25, 50),
		entries: make(map[types.ID]*treeEntry),
	}
}

func (x *TreeIndex) Upsert(_ context.Context, id types.ID, p types.Point, rev int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.entries[id]; ok {
		if old.rev > rev {
			return nil
		}
		x.tree.Delete(old)
	}
	e := &treeEntry{id: id, rev: rev, rect: rtreego.Point{p.Lng, p.Lat}.ToRect(entryTolerance)}
	x.tree.Insert(e)
	x.entries[id] = e
	return nil
}

func (x *TreeIndex) MarkSynced(_ context.Context, rev int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.synced || rev > x.mark {
		x.mark = rev
	}
	x.synced = true
	return nil
}

func (x *TreeIndex) Candidates(_ context.Context, p types.Point, radiusKm float64) (driver.Hits, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := driver.Hits{Watermark: x.mark, Synced: x.synced}
	box, ok := searchBox(p, radiusKm)
	if !ok {
		hits.IDs = make([]types.ID, 0, len(x.entries))
		for id := range x.entries {
			hits.IDs = append(hits.IDs, id)
		}
		return hits, nil
	}
	found := x.tree.SearchIntersect(box)
	hits.IDs = make([]types.ID, len(found))
	for i, h := range found {
		hits.IDs[i] = h.(*treeEntry).id
	}
	return hits, nil
}

// searchBox returns a (lng, lat) rectangle containing every point within
// radiusKm of p, or false when no single rectangle does.
func searchBox(p types.Point, radiusKm float64) (rtreego.Rect, bool) {
	dLat := radiusKm/kmPerDegree*boxSlack + boxSlackDeg
	minLat, maxLat := p.Lat-dLat, p.Lat+dLat
	if minLat <= -90 || maxLat >= 90 {
		return rtreego.Rect{}, false
	}
	widest := math.Max(math.Abs(minLat), math.Abs(maxLat))
	dLng := dLat / math.Cos(widest*math.Pi/180)
	minLng, maxLng := p.Lng-dLng, p.Lng+dLng
	if minLng < -180 || maxLng > 180 {
		return rtreego.Rect{}, false
	}
	box, err := rtreego.NewRectFromPoints(rtreego.Point{minLng, minLat}, rtreego.Point{maxLng, maxLat})
	if err != nil {
		return rtreego.Rect{}, false
	}
	return box, true
}
