package answer

import "context"

// Generator produces one completion from a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}
