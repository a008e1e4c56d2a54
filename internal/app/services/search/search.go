// Package search answers vector and hybrid (vector + lexical) queries
// against the index, applying metadata filters and visibility rules.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/gjson"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/services/embedding"
	"github.com/docuindex/engine/internal/app/storage"
)

// DefaultTopK and DefaultAlpha are the code-side fallbacks when a caller
// omits them.
const (
	DefaultTopK   = 10
	DefaultAlpha  = 0.5
	DefaultMinScore = 0.0
)

// Service is the search front-end used by the HTTP API.
type Service struct {
	chunks    storage.ChunkStore
	embedding *embedding.Service
}

func New(chunks storage.ChunkStore, embeddingSvc *embedding.Service) *Service {
	return &Service{chunks: chunks, embedding: embeddingSvc}
}

// MetadataFilter is a dot-prefixed path (e.g. "metadata.department") paired
// with the value it must equal.
type MetadataFilter struct {
	Path  string
	Value interface{}
}

// Params carries one search request.
type Params struct {
	Query      string
	TopK       int
	MinScore   float64
	Filters    []MetadataFilter
	UseHybrid  bool
	Alpha      float64
	CallerID   string
	IsAdmin    bool
}

// Result is one ranked hit.
type Result struct {
	Chunk domain.Chunk
	Score float64
}

// Search embeds the query, runs a vector search, optionally blends in a
// lexical score, applies metadata filters and visibility rules, and
// returns results ranked by score descending.
func (s *Service) Search(ctx context.Context, p Params) ([]Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, apperrors.New(apperrors.PathValidationFailed, "query must not be empty")
	}
	topK := p.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	alpha := p.Alpha
	if alpha <= 0 {
		alpha = DefaultAlpha
	}

	vectors, err := s.embedding.EncodeBatch(ctx, []string{p.Query})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.SearchTimeout, "embed search query", err)
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, apperrors.New(apperrors.SearchTimeout, "embedding model returned no vector for the query")
	}

	chunks, scores, err := s.chunks.VectorSearch(ctx, vectors[0], topK*4, storage.ChunkFilter{
		UserID:  p.CallerID,
		IsAdmin: p.IsAdmin,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DatabaseQueryError, "vector search", err)
	}

	results := make([]Result, 0, len(chunks))
	for i, c := range chunks {
		if !c.VisibleTo(p.CallerID, p.IsAdmin) {
			continue
		}
		if !matchesFilters(c, p.Filters) {
			continue
		}

		score := scores[i]
		if p.UseHybrid {
			lexical := lexicalScore(c.Text, p.Query)
			score = alpha*score + (1-alpha)*lexical
		}
		if score < p.MinScore {
			continue
		}
		results = append(results, Result{Chunk: c, Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// matchesFilters evaluates each metadata filter against a chunk's
// metadata. Simple top-level keys are resolved with gjson for speed;
// dot-prefixed nested paths fall back to jsonpath.
func matchesFilters(c domain.Chunk, filters []MetadataFilter) bool {
	if len(filters) == 0 {
		return true
	}
	raw, err := json.Marshal(c.Metadata)
	if err != nil {
		return false
	}

	for _, f := range filters {
		key := strings.TrimPrefix(f.Path, "metadata.")
		if !strings.Contains(key, ".") {
			result := gjson.GetBytes(raw, key)
			if !result.Exists() || fmt.Sprintf("%v", result.Value()) != fmt.Sprintf("%v", f.Value) {
				return false
			}
			continue
		}

		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return false
		}
		value, err := jsonpath.Get("$."+key, decoded)
		if err != nil {
			return false
		}
		if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", f.Value) {
			return false
		}
	}
	return true
}

// lexicalScore is a crude token-overlap score used as the lexical half of
// the hybrid blend; the tsvector-backed ranking lives in the database
// query that produced the candidate set.
func lexicalScore(text, query string) float64 {
	queryTokens := strings.Fields(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return 0
	}
	lowerText := strings.ToLower(text)
	var hits int
	for _, tok := range queryTokens {
		if strings.Contains(lowerText, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}
