package domain

import "errors"

var (
	// ErrCorpusUnavailable signals a missing, unreadable, or empty corpus.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	// ErrInvalidInput signals submitted text below the minimum length or otherwise unusable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexQuery signals an unexpected hashing or retrieval failure during a check.
	ErrIndexQuery = errors.New("index query failure")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
