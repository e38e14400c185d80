package geo

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mmcloughlin/geohash"

	"github.com/Mrigank923/Voy/internal/models"
)

// Entry is the read-mostly projection of a driver held by the index. It lags
// the driver record by at most one feed tick.
type Entry struct {
	DriverID  string
	Loc       models.Coord
	Class     models.VehicleClass
	UpdatedAt time.Time
}

// Candidate is an index entry annotated with its distance to the query point.
type Candidate struct {
	Entry
	DistanceM float64
}

// Geo is the minimal interface required by the match coordinator and the feed.
type Geo interface {
	Upsert(e Entry)
	Remove(driverID string)
	QueryNearest(p models.Coord, radiusM float64, class models.VehicleClass, limit int) []Candidate
	Size() int
}

// Index buckets entries by geohash cell so a radius query touches only the
// cells overlapping the query circle instead of scanning the whole fleet.
type Index struct {
	mu      sync.RWMutex
	buckets map[string]map[string]Entry
	cellOf  map[string]string // driverID -> bucket hash

	precision  uint
	cellLatDeg float64
	cellLonDeg float64
}

const defaultPrecision = 6 // ~1.2km x 0.6km cells

func NewIndex() *Index {
	box := geohash.BoundingBox(geohash.EncodeWithPrecision(0, 0, defaultPrecision))
	return &Index{
		buckets:    make(map[string]map[string]Entry),
		cellOf:     make(map[string]string),
		precision:  defaultPrecision,
		cellLatDeg: box.MaxLat - box.MinLat,
		cellLonDeg: box.MaxLng - box.MinLng,
	}
}

func (g *Index) Upsert(e Entry) {
	cell := geohash.EncodeWithPrecision(e.Loc.Lat, e.Loc.Lon, g.precision)

	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.cellOf[e.DriverID]; ok && prev != cell {
		delete(g.buckets[prev], e.DriverID)
		if len(g.buckets[prev]) == 0 {
			delete(g.buckets, prev)
		}
	}
	b, ok := g.buckets[cell]
	if !ok {
		b = make(map[string]Entry)
		g.buckets[cell] = b
	}
	b[e.DriverID] = e
	g.cellOf[e.DriverID] = cell
}

func (g *Index) Remove(driverID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cell, ok := g.cellOf[driverID]
	if !ok {
		return
	}
	delete(g.buckets[cell], driverID)
	if len(g.buckets[cell]) == 0 {
		delete(g.buckets, cell)
	}
	delete(g.cellOf, driverID)
}

func (g *Index) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cellOf)
}

// QueryNearest returns entries of the requested class within radiusM of p,
// ordered by ascending distance. Equal distances are broken by the most
// recent update, then by driver ID, so results are deterministic. An empty
// result is not an error.
//
// The candidate set is copied out under the read lock and scored outside it;
// a query reflects all upserts that completed before it began.
func (g *Index) QueryNearest(p models.Coord, radiusM float64, class models.VehicleClass, limit int) []Candidate {
	if radiusM <= 0 || limit <= 0 {
		return nil
	}

	cells := g.coveringCells(p, radiusM)

	g.mu.RLock()
	snapshot := make([]Entry, 0, 16)
	for _, cell := range cells {
		for _, e := range g.buckets[cell] {
			snapshot = append(snapshot, e)
		}
	}
	g.mu.RUnlock()

	out := make([]Candidate, 0, len(snapshot))
	for _, e := range snapshot {
		if class != models.ClassAny && e.Class != class {
			continue
		}
		d := Haversine(p.Lat, p.Lon, e.Loc.Lat, e.Loc.Lon)
		if d > radiusM {
			continue
		}
		out = append(out, Candidate{Entry: e, DistanceM: d})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceM != out[j].DistanceM {
			return out[i].DistanceM < out[j].DistanceM
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].DriverID < out[j].DriverID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// coveringCells enumerates the geohash cells overlapping the bounding box of
// the query circle. Typical radii cover a handful of cells.
func (g *Index) coveringCells(p models.Coord, radiusM float64) []string {
	latDelta := radiusM / metersPerDegreeLat
	cos := math.Cos(p.Lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01 // degenerate near the poles; overscan rather than miss
	}
	lonDelta := radiusM / (metersPerDegreeLat * cos)

	seen := make(map[string]struct{})
	cells := make([]string, 0, 9)
	for lat := p.Lat - latDelta; lat <= p.Lat+latDelta+g.cellLatDeg; lat += g.cellLatDeg {
		for lon := p.Lon - lonDelta; lon <= p.Lon+lonDelta+g.cellLonDeg; lon += g.cellLonDeg {
			cell := geohash.EncodeWithPrecision(clampLat(lat), wrapLon(lon), g.precision)
			if _, ok := seen[cell]; ok {
				continue
			}
			seen[cell] = struct{}{}
			cells = append(cells, cell)
		}
	}
	return cells
}

const metersPerDegreeLat = 111320.0

func clampLat(lat float64) float64 {
	if lat > 90 {
		return 90
	}
	if lat < -90 {
		return -90
	}
	return lat
}

func wrapLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
