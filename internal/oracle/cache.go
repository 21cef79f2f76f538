package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/yourusername/prop-edge/internal/feed"
	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
)

// CacheKey uniquely identifies a prediction for caching.
type CacheKey struct {
	Model       string
	CandidateID string
	GameDate    string
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Model, k.CandidateID, k.GameDate)
}

// PredictionCache provides in-memory caching for predictions. Historical
// replays re-evaluate the same candidates across configuration sweeps, so
// cache hits save repeated oracle round trips.
type PredictionCache struct {
	cache   *cache.Cache
	maxSize int
	mu      sync.Mutex
}

// NewPredictionCache creates a cache with the given TTL and size bound.
func NewPredictionCache(ttl time.Duration, maxSize int) *PredictionCache {
	return &PredictionCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
	}
}

// Get retrieves a cached prediction, nil on miss.
func (pc *PredictionCache) Get(key CacheKey) *models.Prediction {
	if result, found := pc.cache.Get(key.String()); found {
		if pred, ok := result.(*models.Prediction); ok {
			metrics.OracleCacheHitsTotal.Inc()
			return pred
		}
	}
	metrics.OracleCacheMissesTotal.Inc()
	return nil
}

// Set stores a prediction. When the size bound is reached, expired entries are
// flushed first; if still full the write is dropped.
func (pc *PredictionCache) Set(key CacheKey, prediction *models.Prediction) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.maxSize > 0 && pc.cache.ItemCount() >= pc.maxSize {
		pc.cache.DeleteExpired()
		if pc.cache.ItemCount() >= pc.maxSize {
			return
		}
	}
	pc.cache.SetDefault(key.String(), prediction)
}

// CachedOracle wraps a PredictionOracle with a cache.
type CachedOracle struct {
	inner feed.PredictionOracle
	cache *PredictionCache
}

// NewCachedOracle wraps an oracle with caching.
func NewCachedOracle(inner feed.PredictionOracle, cache *PredictionCache) *CachedOracle {
	return &CachedOracle{inner: inner, cache: cache}
}

// Name returns the wrapped oracle's name.
func (c *CachedOracle) Name() string {
	return c.inner.Name()
}

// Predict serves from cache when possible, otherwise delegates and stores.
func (c *CachedOracle) Predict(ctx context.Context, candidate models.Candidate) (*models.Prediction, error) {
	key := CacheKey{
		Model:       c.inner.Name(),
		CandidateID: candidate.ID,
		GameDate:    candidate.GameDate.Format(feed.DateKey),
	}
	if cached := c.cache.Get(key); cached != nil {
		return cached, nil
	}

	pred, err := c.inner.Predict(ctx, candidate)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, pred)
	return pred, nil
}
