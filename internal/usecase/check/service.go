// Package check implements the plagiarism detection engine: per-sentence
// fan-out over the lexical and semantic indices, score fusion, and report
// assembly.
package check

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/copyless-dev/copyless/internal/corpus"
	"github.com/copyless-dev/copyless/internal/domain"
	"github.com/copyless-dev/copyless/internal/metrics"
)

// Service runs plagiarism checks against the in-memory indices.
type Service struct {
	corpus CorpusReader
	lex    LexicalIndex
	sem    SemanticIndex
	policy Policy

	minInputChars int

	// unavailable carries the startup corpus error in degraded mode.
	// The server still answers, but every check fails fast with it.
	unavailable error
}

// New creates a check service over loaded indices.
func New(corpus CorpusReader, lex LexicalIndex, sem SemanticIndex, policy Policy, minInputChars int) *Service {
	return &Service{
		corpus:        corpus,
		lex:           lex,
		sem:           sem,
		policy:        policy,
		minInputChars: minInputChars,
	}
}

// NewUnavailable creates a degraded service that rejects every check with
// the given startup error. Used when the corpus failed to load.
func NewUnavailable(err error) *Service {
	return &Service{unavailable: err}
}

// Ready reports whether the service can run checks. Returns the startup
// error in degraded mode.
func (s *Service) Ready() error { return s.unavailable }

// hit is one scored candidate from either index.
type hit struct {
	docID      int
	similarity float64
}

// sentenceScores holds both index results for one input sentence.
type sentenceScores struct {
	lex []hit
	sem []hit
}

// Check runs a full plagiarism check on the input text and assembles
// the report. Sentences are queried concurrently against both indices;
// the first failure aborts the whole check.
func (s *Service) Check(ctx context.Context, text string) (domain.Report, error) {
	start := time.Now()

	if err := s.unavailable; err != nil {
		metrics.CheckRequestsTotal.WithLabelValues("unavailable").Inc()
		return domain.Report{}, fmt.Errorf("reference corpus not loaded: %w: %w", domain.ErrCorpusUnavailable, err)
	}

	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < s.minInputChars {
		metrics.CheckRequestsTotal.WithLabelValues("invalid_input").Inc()
		return domain.Report{}, fmt.Errorf(
			"text must be at least %d characters long: %w", s.minInputChars, domain.ErrInvalidInput)
	}

	sentences := corpus.SplitSentences(trimmed)
	if len(sentences) == 0 {
		metrics.CheckRequestsTotal.WithLabelValues("invalid_input").Inc()
		return domain.Report{}, fmt.Errorf("text contains no sentences: %w", domain.ErrInvalidInput)
	}
	metrics.CheckSentences.Observe(float64(len(sentences)))

	results, err := s.queryIndices(ctx, sentences)
	if err != nil {
		metrics.CheckRequestsTotal.WithLabelValues("error").Inc()
		return domain.Report{}, err
	}

	report := s.assemble(sentences, results)
	report.Duration = time.Since(start)

	metrics.CheckRequestsTotal.WithLabelValues("ok").Inc()
	metrics.CheckDuration.Observe(report.Duration.Seconds())

	return report, nil
}

// queryIndices fans out one goroutine per (sentence, index kind) and
// joins on all of them. The first error cancels the remaining semantic
// queries and is returned; no partial report is produced.
func (s *Service) queryIndices(ctx context.Context, sentences []string) ([]sentenceScores, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]sentenceScores, len(sentences))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, sentence := range sentences {
		wg.Add(2)

		go func(i int, sentence string) {
			defer wg.Done()
			for _, c := range s.lex.Query(sentence) {
				results[i].lex = append(results[i].lex, hit{c.DocID, c.Similarity})
			}
		}(i, sentence)

		go func(i int, sentence string) {
			defer wg.Done()
			cands, err := s.sem.Query(ctx, sentence)
			if err != nil {
				fail(fmt.Errorf("semantic query: %w", err))
				return
			}
			for _, c := range cands {
				results[i].sem = append(results[i].sem, hit{c.DocID, c.Similarity})
			}
		}(i, sentence)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// assemble converts index candidates into matches, fuses the scores, and
// builds the report. Matches are ordered strongest first.
func (s *Service) assemble(sentences []string, results []sentenceScores) domain.Report {
	var (
		matches   []domain.Match
		lexScores []float64
		semScores []float64
	)

	for i, res := range results {
		for _, c := range res.lex {
			doc, ok := s.corpus.Doc(c.docID)
			if !ok {
				continue
			}
			matches = append(matches, domain.Match{
				QueryText:   sentences[i],
				MatchedText: doc.Text,
				Similarity:  c.similarity,
				Kind:        domain.MatchLexical,
				SourceID:    c.docID,
			})
			lexScores = append(lexScores, c.similarity)
		}
		for _, c := range res.sem {
			doc, ok := s.corpus.Doc(c.docID)
			if !ok {
				continue
			}
			matches = append(matches, domain.Match{
				QueryText:   sentences[i],
				MatchedText: doc.Text,
				Similarity:  c.similarity,
				Kind:        domain.MatchSemantic,
				SourceID:    c.docID,
			})
			semScores = append(semScores, c.similarity)
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Similarity != matches[b].Similarity {
			return matches[a].Similarity > matches[b].Similarity
		}
		return matches[a].SourceID < matches[b].SourceID
	})

	overall, lexBreakdown, semBreakdown := s.policy.Fuse(lexScores, semScores)

	return domain.Report{
		OverallSimilarity: overall,
		LexicalBreakdown:  lexBreakdown,
		SemanticBreakdown: semBreakdown,
		Matches:           matches,
		Message:           advisoryMessage(overall),
	}
}

// advisoryMessage maps the overall score to a human-readable verdict.
func advisoryMessage(overall float64) string {
	switch {
	case overall >= 75:
		return "High similarity detected: large portions of the text match the reference corpus."
	case overall >= 40:
		return "Moderate similarity detected: several passages resemble the reference corpus."
	case overall > 0:
		return "Low similarity detected: only minor overlap with the reference corpus."
	default:
		return "No significant similarity detected."
	}
}
