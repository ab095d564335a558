// Package answer builds grounded prompts from retrieved chunks and drives
// the generation model.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// NoGroundingAnswer is returned verbatim when nothing relevant was
// retrieved. It is produced without a model call, so the outcome is
// reproducible and costs nothing.
const NoGroundingAnswer = "No relevant passages were found in the archived documents for this question, " +
	"so an answer cannot be grounded in the archive."

const systemPrompt = "You answer questions about an archive of documents. " +
	"Use ONLY the numbered excerpts provided by the user. " +
	"Cite the source tag (for example [doc-12:3]) after every claim you take from an excerpt. " +
	"If the excerpts do not contain the answer, say so plainly instead of guessing."

// excerptLimit caps how much of a chunk is quoted back as a source.
const excerptLimit = 240

// Service turns retrieved chunks into a final answer.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

// New creates an answer service.
func New(generator Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Answer generates a grounded answer from the matches. A transient
// generation failure is retried once; a second failure surfaces as
// ErrGenerationFailed. Zero matches short-circuit to NoGroundingAnswer.
func (s *Service) Answer(ctx context.Context, question string, matches []domain.Match) (domain.Answer, error) {
	if len(matches) == 0 {
		return domain.Answer{
			Text:      NoGroundingAnswer,
			Grounding: domain.GroundingNone,
		}, nil
	}

	user := buildUserPrompt(question, matches)

	text, err := s.generator.Generate(ctx, systemPrompt, user)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
		}
		s.logger.Warn("Generation failed, retrying once", zap.Error(err))

		text, err = s.generator.Generate(ctx, systemPrompt, user)
		if err != nil {
			return domain.Answer{}, fmt.Errorf("generate answer after retry: %w", err)
		}
	}

	return domain.Answer{
		Text:      text,
		Sources:   Sources(matches),
		Grounding: domain.GroundingFull,
	}, nil
}

// Degraded produces a sources-only answer for when the generation model is
// known to be down but retrieval still works.
func (s *Service) Degraded(matches []domain.Match) domain.Answer {
	if len(matches) == 0 {
		return domain.Answer{
			Text:      NoGroundingAnswer,
			Grounding: domain.GroundingNone,
		}
	}
	return domain.Answer{
		Text: "The answer model is currently unavailable. " +
			"The most relevant archived passages are returned as sources.",
		Sources:   Sources(matches),
		Grounding: domain.GroundingDegraded,
	}
}

// Sources converts matches into citable source entries.
func Sources(matches []domain.Match) []domain.Source {
	sources := make([]domain.Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, domain.Source{
			DocumentID: m.Chunk.DocumentID,
			Seq:        m.Chunk.Seq,
			Excerpt:    excerpt(m.Chunk.Text),
			Score:      m.Similarity,
		})
	}
	return sources
}

// buildUserPrompt lays out the excerpts with stable source tags so the model
// can cite them.
func buildUserPrompt(question string, matches []domain.Match) string {
	var b strings.Builder
	b.WriteString("Excerpts from the archive:\n\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. [%s:%d]\n%s\n\n", i+1, m.Chunk.DocumentID, m.Chunk.Seq, m.Chunk.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit]) + "…"
}
