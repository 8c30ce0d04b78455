package ai

import (
	"context"

	"github.com/copp1723/ccl-3-final-sub003/platform/breaker"
)

// FallbackText is returned when the model provider's breaker is open. It is a
// safe holding reply that keeps the conversation alive without inventing
// qualification details.
const FallbackText = "Thanks for your message! One of our specialists will follow up with you shortly."

type resilientGenerator struct {
	inner TextGenerator
	br    *breaker.Breaker[string]
}

// WithBreaker wraps a generator so provider outages degrade to a canned reply
// instead of failing the caller.
func WithBreaker(g TextGenerator, br *breaker.Breaker[string]) TextGenerator {
	return &resilientGenerator{inner: g, br: br}
}

func (r *resilientGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return r.br.Execute(ctx, func(ctx context.Context) (string, error) {
		return r.inner.Generate(ctx, system, prompt)
	})
}
