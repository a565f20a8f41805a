// Package corpus loads and segments the reference corpus. The store is
// built once at startup and is read-only afterwards, so concurrent readers
// need no locking.
package corpus

import (
	"fmt"
	"os"
	"strings"

	"github.com/copyless-dev/copyless/internal/domain"
)

// Granularity selects the unit of corpus comparison.
type Granularity string

const (
	// Paragraph splits the corpus on blank-line boundaries.
	Paragraph Granularity = "paragraph"
	// Sentence splits the corpus into individual sentences.
	Sentence Granularity = "sentence"
)

// Store holds the segmented reference corpus.
type Store struct {
	docs []domain.Document
}

// Load reads the corpus file and segments it into documents. A missing,
// unreadable, or empty corpus yields ErrCorpusUnavailable.
func Load(path string, granularity Granularity) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w: %w", path, domain.ErrCorpusUnavailable, err)
	}

	var blocks []string
	switch granularity {
	case Sentence:
		blocks = SplitSentences(string(data))
	default:
		blocks = splitParagraphs(string(data))
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("corpus %s yields zero documents: %w", path, domain.ErrCorpusUnavailable)
	}

	docs := make([]domain.Document, len(blocks))
	for i, b := range blocks {
		docs[i] = domain.Document{ID: i, Text: b}
	}
	return &Store{docs: docs}, nil
}

// Documents returns all corpus documents in id order.
func (s *Store) Documents() []domain.Document { return s.docs }

// Doc returns the document with the given id.
func (s *Store) Doc(id int) (domain.Document, bool) {
	if id < 0 || id >= len(s.docs) {
		return domain.Document{}, false
	}
	return s.docs[id], true
}

// Len returns the number of documents.
func (s *Store) Len() int { return len(s.docs) }

// splitParagraphs splits raw text on blank-line boundaries.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SplitSentences performs language-agnostic, punctuation-based sentence
// segmentation. Consecutive terminators (e.g. "?!") end a single sentence.
func SplitSentences(text string) []string {
	var out []string
	var sb strings.Builder

	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
		sb.Reset()
	}

	for _, r := range text {
		switch r {
		case '.', '!', '?':
			flush()
		default:
			sb.WriteRune(r)
		}
	}
	flush()

	return out
}
