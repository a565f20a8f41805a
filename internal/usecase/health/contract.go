package health

import "context"

// CorpusReadiness reports whether the detection engine has a loaded corpus.
type CorpusReadiness interface {
	Ready() error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks embedding cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
