// Package semantic retrieves corpus documents whose embedding is close to a
// query sentence's embedding, independent of exact wording. The vector table
// is built once at startup and is read-only afterwards; search is exact
// (flat) k-nearest-neighbor under Euclidean distance.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/copyless-dev/copyless/internal/domain"
)

// Config holds the semantic index tunables.
type Config struct {
	TopK       int
	Curve      Curve
	CurveScale float64
}

// Candidate is one retrieved document with its raw distance and the mapped
// similarity on the 0-100 scale.
type Candidate struct {
	DocID      int
	Distance   float64
	Similarity float64
}

// Index is the flat nearest-neighbor structure over corpus embeddings.
type Index struct {
	cfg     Config
	vectors [][]float32
	embed   domain.Embedder
}

// Build embeds every document and assembles the index. Providers that
// implement domain.BatchEmbedder are used in one call; others fall back to
// per-document embedding.
func Build(ctx context.Context, cfg Config, docs []domain.Document, embedder domain.Embedder) (*Index, error) {
	ix := &Index{cfg: cfg, embed: embedder}
	if len(docs) == 0 {
		return ix, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	var result domain.BatchEmbeddingResult
	var err error
	if be, ok := embedder.(domain.BatchEmbedder); ok {
		result, err = be.BatchEmbed(ctx, texts)
	} else {
		result, err = domain.BatchFallback(ctx, embedder, texts)
	}
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(result.Embeddings) != len(docs) {
		return nil, fmt.Errorf("embed corpus: got %d vectors for %d documents: %w",
			len(result.Embeddings), len(docs), domain.ErrEmbeddingProviderError)
	}

	ix.vectors = result.Embeddings
	return ix, nil
}

// Query embeds the sentence and returns its K nearest documents by Euclidean
// distance, ordered by ascending distance with ties broken by ascending
// document id. Distances are mapped to 0-100 similarities by the configured
// curve.
func (ix *Index) Query(ctx context.Context, sentence string) ([]Candidate, error) {
	if len(ix.vectors) == 0 {
		return nil, nil
	}

	res, err := ix.embed.Embed(ctx, sentence)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	out := make([]Candidate, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		d, err := euclidean(res.Embedding, vec)
		if err != nil {
			return nil, fmt.Errorf("distance to document %d: %w: %w", id, domain.ErrIndexQuery, err)
		}
		out = append(out, Candidate{
			DocID:      id,
			Distance:   d,
			Similarity: mapScore(d, ix.cfg.Curve, ix.cfg.CurveScale),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].DocID < out[j].DocID
	})

	if len(out) > ix.cfg.TopK {
		out = out[:ix.cfg.TopK]
	}
	return out, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.vectors) }

// euclidean computes the L2 distance between two vectors.
func euclidean(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
