package domain

import "errors"

var (
	// ErrModelUnavailable signals that the embedding or generation model failed to load.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelMismatch signals an embedding model version or dimension mismatch.
	ErrModelMismatch = errors.New("embedding model mismatch")
	// ErrStoreUnavailable signals an unreachable vector store.
	ErrStoreUnavailable = errors.New("vector store unavailable")
	// ErrGenerationFailed signals a generation backend error or timeout after one retry.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrServiceDegraded signals that one or more dependencies are down.
	ErrServiceDegraded = errors.New("service degraded")
	// ErrDocumentNotFound signals an unknown document id in a scoped query or ingestion.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNoExtractableText signals a document whose text is empty or whitespace-only.
	ErrNoExtractableText = errors.New("no extractable text")
)
