// Package embedding wraps an external embedding model behind an
// encode-batch interface with an LRU cache of encoded text, optionally
// backed by a distributed Redis cache.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/docuindex/engine/infrastructure/logging"
)

// Model is the external collaborator that turns text into vectors. It is
// deliberately out of scope per the core spec; this package only owns the
// caching and rate-limiting around it.
type Model interface {
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache is satisfied both by the in-process LRU and by a Redis-backed
// implementation, so Service can be wired to either.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32)
}

// Service is the embedding front-end used by the Indexer Pipeline and
// search. It caches per-text encodings and throttles calls into the model
// during bulk scans.
type Service struct {
	model   Model
	cache   Cache
	limiter *rate.Limiter
	logger  *logging.Logger
}

// Option configures Service construction.
type Option func(*Service)

// WithRateLimit throttles calls into the underlying model, used during
// bulk scans so a large backlog doesn't saturate the model's own
// concurrency budget.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(s *Service) {
		s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

func New(model Model, cache Cache, logger *logging.Logger, opts ...Option) *Service {
	s := &Service{model: model, cache: cache, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EncodeBatch returns one equal-dimension vector per input text, serving
// cache hits directly and batching the remainder to the model.
func (s *Service) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := cacheKey(text)
		if vec, ok := s.cache.Get(ctx, key); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	if s.limiter != nil {
		if err := s.limiter.WaitN(ctx, len(missTexts)); err != nil {
			return nil, err
		}
	}

	encoded, err := s.model.EncodeBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(encoded) != len(missTexts) {
		s.logger.WithField("expected", len(missTexts)).WithField("got", len(encoded)).
			Warn("embedding model returned a mismatched batch size")
	}

	for j, idx := range missIdx {
		if j >= len(encoded) {
			break
		}
		results[idx] = encoded[j]
		s.cache.Set(ctx, cacheKey(missTexts[j]), encoded[j])
	}
	return results, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// LRUCache is the in-process, bounded Cache implementation.
type LRUCache struct {
	inner *lru.Cache[string, []float32]
}

// NewLRUCache builds a bounded in-memory cache of encoded text → vector.
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{inner: c}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) ([]float32, bool) {
	return c.inner.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key string, vector []float32) {
	c.inner.Add(key, vector)
}

// CosineSimilarity is the lone piece of vector math this package performs
// locally, used by the hybrid search alpha blend rather than pushed into
// SQL, since both signals are combined in application code.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
