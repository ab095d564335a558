package domain

import "time"

// Chunk is a contiguous text span of one document, the unit of embedding
// and retrieval. Seq is 0-based and unique within the document; chunks are
// re-derivable deterministically from the document text and the chunking
// parameters, so re-ingestion replaces the whole set.
type Chunk struct {
	DocumentID string
	Seq        int
	Text       string
	CharCount  int
	Vector     []float32
	CreatedAt  time.Time
}

// Match is a retrieved chunk with its cosine similarity to the query.
type Match struct {
	Chunk      Chunk
	Similarity float64
}
