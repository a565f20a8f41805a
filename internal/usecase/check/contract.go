package check

import (
	"context"

	"github.com/copyless-dev/copyless/internal/domain"
	"github.com/copyless-dev/copyless/internal/index/lexical"
	"github.com/copyless-dev/copyless/internal/index/semantic"
)

// CorpusReader resolves candidate document ids back to source text.
type CorpusReader interface {
	Doc(id int) (domain.Document, bool)
}

// LexicalIndex retrieves near-duplicate candidates for one sentence.
// Queries are pure in-memory lookups and never block.
type LexicalIndex interface {
	Query(sentence string) []lexical.Candidate
}

// SemanticIndex retrieves semantically similar candidates for one sentence.
// Each query embeds the sentence, so it may call out to the provider.
type SemanticIndex interface {
	Query(ctx context.Context, sentence string) ([]semantic.Candidate, error)
}
