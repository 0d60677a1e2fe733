package index

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

// ScoredPoint is one vector search hit: the point's id, its payload, and
// its raw distance from the query vector (smaller is better), used as the
// query engine's tie-break signal after reciprocal-rank fusion.
type ScoredPoint struct {
	ID       string
	Payload  types.VectorPayload
	Distance float64
}

// VectorFilter narrows a vector search. Filtering by content kind happens
// later, at hydration, once an origin entity's table is known.
type VectorFilter struct {
	ExcludeFileIdentifier *types.FileIdentifier
	TimeRange             *types.TimeRange
}

func (f VectorFilter) matches(p types.VectorPayload) bool {
	if f.ExcludeFileIdentifier != nil && p.FileIdentifier == *f.ExcludeFileIdentifier {
		return false
	}
	if f.TimeRange == nil {
		return true
	}
	switch {
	case p.Timestamp != nil:
		return f.TimeRange.Contains(*p.Timestamp)
	case p.StartTimestamp != nil:
		return f.TimeRange.Contains(*p.StartTimestamp)
	default:
		return true
	}
}

type vectorPoint struct {
	ID      string              `json:"id"`
	Payload types.VectorPayload `json:"payload"`
	Vector  []float32           `json:"vector"`
}

// vectorCollection is a brute-force vector index: cosine distance scanned
// over every point. The corpus carries no ANN library (no faiss/hnsw
// binding among the examples), and a brute-force scan is the standard
// fallback at the scale this engine targets (a single user's local
// library); buntdb gives it durable storage without a bespoke file format.
type vectorCollection struct {
	db   *buntdb.DB
	name string

	mu     sync.RWMutex
	points map[string]*vectorPoint
}

func newVectorCollection(db *buntdb.DB, name string) *vectorCollection {
	return &vectorCollection{db: db, name: name, points: map[string]*vectorPoint{}}
}

func (c *vectorCollection) keyPrefix() string { return fmt.Sprintf("vec:%s:", c.name) }

func (c *vectorCollection) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(c.keyPrefix()+"*", func(key, value string) bool {
			var p vectorPoint
			if err := json.Unmarshal([]byte(value), &p); err == nil {
				c.points[p.ID] = &p
			}
			return true
		})
	})
}

// pointID derives a UUIDv5 from the payload's canonical JSON, so upserting
// the same logical point twice is idempotent.
func pointID(payload types.VectorPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", cberrors.Permanentf("index.pointID", err)
	}
	return uuid.NewSHA1(uuid.Nil, data).String(), nil
}

// Upsert stores or replaces the point for payload, returning its id.
func (c *vectorCollection) Upsert(ctx context.Context, payload types.VectorPayload, vector []float32) (string, error) {
	id, err := pointID(payload)
	if err != nil {
		return "", err
	}
	p := &vectorPoint{ID: id, Payload: payload, Vector: vector}
	data, err := json.Marshal(p)
	if err != nil {
		return "", cberrors.Permanentf("index.Upsert", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(c.keyPrefix()+id, string(data), nil)
		return err
	})
	if err != nil {
		return "", cberrors.Transientf("index.Upsert", err)
	}
	c.points[id] = p
	return id, nil
}

// Search returns the k nearest points to query by cosine distance,
// ascending (closest first), filtered by filter.
func (c *vectorCollection) Search(ctx context.Context, query []float32, k int, filter VectorFilter) ([]ScoredPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, cberrors.NewCancelled("index.Search")
	}
	c.mu.RLock()
	candidates := make([]ScoredPoint, 0, len(c.points))
	for _, p := range c.points {
		if !filter.matches(p.Payload) {
			continue
		}
		candidates = append(candidates, ScoredPoint{ID: p.ID, Payload: p.Payload, Distance: cosineDistance(query, p.Vector)})
	}
	c.mu.RUnlock()

	sortByDistance(candidates)
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// DeleteByFilter removes every point matching pred, returning the count
// removed.
func (c *vectorCollection) DeleteByFilter(ctx context.Context, pred func(types.VectorPayload) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []string
	for id, p := range c.points {
		if pred(p.Payload) {
			toRemove = append(toRemove, id)
		}
	}
	if len(toRemove) == 0 {
		return 0, nil
	}
	err := c.db.Update(func(tx *buntdb.Tx) error {
		for _, id := range toRemove {
			if _, err := tx.Delete(c.keyPrefix() + id); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, cberrors.Transientf("index.DeleteByFilter", err)
	}
	for _, id := range toRemove {
		delete(c.points, id)
	}
	return len(toRemove), nil
}

// VectorForFileAt returns the vector of the point belonging to fileID whose
// timestamp is closest to atMs, used by the query engine's recommendation
// path to locate the embedding at a given playback position. Points
// carrying no timestamp at all are never matched.
func (c *vectorCollection) VectorForFileAt(fileID types.FileIdentifier, atMs int64) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best []float32
	bestDelta := int64(math.MaxInt64)
	for _, p := range c.points {
		if p.Payload.FileIdentifier != fileID {
			continue
		}
		ts := p.Payload.Timestamp
		if ts == nil {
			ts = p.Payload.StartTimestamp
		}
		if ts == nil {
			continue
		}
		delta := *ts - atMs
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			bestDelta = delta
			best = p.Vector
		}
	}
	return best
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return math.MaxFloat64
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return math.MaxFloat64
	}
	cosine := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return 1 - cosine
}

func sortByDistance(s []ScoredPoint) {
	sort.Slice(s, func(i, j int) bool { return s[i].Distance < s[j].Distance })
}
