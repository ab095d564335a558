package domain

// Grounding describes how well an answer is backed by retrieved sources.
type Grounding string

// Grounding values returned with every answer.
const (
	// GroundingFull means the answer was generated from retrieved sources.
	GroundingFull Grounding = "grounded"
	// GroundingDegraded means sources were retrieved but the generation
	// backend was unavailable, so no answer text was produced.
	GroundingDegraded Grounding = "degraded"
	// GroundingNone means retrieval found nothing above the similarity
	// threshold; the answer explicitly states the lack of context.
	GroundingNone Grounding = "unavailable"
)

// Source is a single citation backing an answer.
type Source struct {
	DocumentID string
	Seq        int
	Excerpt    string
	Score      float64
}

// Answer is the post-processed result of the question-answering path.
type Answer struct {
	Text      string
	Sources   []Source
	Grounding Grounding
}
