// Package lexical retrieves corpus documents that share a high fraction of
// word shingles with a query sentence, using MinHash signatures bucketed by
// banded locality-sensitive hashing. The index is built once at startup and
// is read-only afterwards.
package lexical

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/copyless-dev/copyless/internal/domain"
)

// Config holds the lexical index tunables.
type Config struct {
	Permutations int     // MinHash signature length
	Threshold    float64 // candidates below this Jaccard similarity are dropped
	ShingleSize  int     // words per shingle
	TopK         int     // candidates kept per query
}

// Candidate is one retrieved document with its similarity on the 0-100 scale.
type Candidate struct {
	DocID      int
	Similarity float64
}

// Index is the MinHash/LSH structure over the corpus.
type Index struct {
	cfg        Config
	perms      []permutation
	bands      int
	rows       int
	buckets    []map[uint64][]int // per-band: band hash -> document ids
	signatures [][]uint64
	normDocs   []string // normalized document text for the containment fast path
}

// New builds the index over the given documents. An empty corpus yields an
// empty index whose queries return no candidates.
func New(cfg Config, docs []domain.Document) *Index {
	bands, rows := pickBands(cfg.Permutations, cfg.Threshold)

	ix := &Index{
		cfg:        cfg,
		perms:      newPermutations(cfg.Permutations),
		bands:      bands,
		rows:       rows,
		buckets:    make([]map[uint64][]int, bands),
		signatures: make([][]uint64, len(docs)),
		normDocs:   make([]string, len(docs)),
	}
	for b := range ix.buckets {
		ix.buckets[b] = make(map[uint64][]int)
	}

	for _, doc := range docs {
		sig := signature(shingles(tokenize(doc.Text), cfg.ShingleSize), ix.perms)
		ix.signatures[doc.ID] = sig
		ix.normDocs[doc.ID] = normalize(doc.Text)
		for b := 0; b < bands; b++ {
			h := ix.hashBand(sig, b)
			ix.buckets[b][h] = append(ix.buckets[b][h], doc.ID)
		}
	}

	return ix
}

// Query returns the top-K documents whose estimated Jaccard similarity with
// the sentence meets the configured threshold, ordered by descending
// similarity with ties broken by ascending document id. A sentence contained
// verbatim in a document scores 100 regardless of shingle overlap.
func (ix *Index) Query(sentence string) []Candidate {
	if len(ix.signatures) == 0 {
		return nil
	}

	best := make(map[int]float64)

	if norm := normalize(sentence); norm != "" {
		for id, doc := range ix.normDocs {
			if strings.Contains(doc, norm) {
				best[id] = 100.0
			}
		}
	}

	words := tokenize(sentence)
	if len(words) > 0 {
		sig := signature(shingles(words, ix.cfg.ShingleSize), ix.perms)

		seen := make(map[int]struct{})
		for b := 0; b < ix.bands; b++ {
			for _, id := range ix.buckets[b][ix.hashBand(sig, b)] {
				seen[id] = struct{}{}
			}
		}

		for id := range seen {
			j := estimateJaccard(sig, ix.signatures[id])
			if j < ix.cfg.Threshold {
				continue
			}
			if score := round2(j * 100); score > best[id] {
				best[id] = score
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for id, score := range best {
		out = append(out, Candidate{DocID: id, Similarity: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].DocID < out[j].DocID
	})

	if len(out) > ix.cfg.TopK {
		out = out[:ix.cfg.TopK]
	}
	return out
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.signatures) }

// hashBand hashes one signature band into a bucket key.
func (ix *Index) hashBand(sig []uint64, band int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range sig[band*ix.rows : (band+1)*ix.rows] {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	return h.Sum64()
}

// pickBands chooses the band layout whose LSH probability threshold
// (1/b)^(1/r) is closest to the configured similarity threshold, among band
// counts that divide the permutation count.
func pickBands(numPerm int, threshold float64) (bands, rows int) {
	bands, rows = numPerm, 1
	bestGap := math.Inf(1)
	for b := 1; b <= numPerm; b++ {
		if numPerm%b != 0 {
			continue
		}
		r := numPerm / b
		t := math.Pow(1.0/float64(b), 1.0/float64(r))
		if gap := math.Abs(t - threshold); gap < bestGap {
			bestGap = gap
			bands, rows = b, r
		}
	}
	return bands, rows
}

// normalize lowercases and collapses whitespace for containment comparison.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
