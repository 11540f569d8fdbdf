package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Paced wraps a provider with a token-bucket limiter shared by every call.
type Paced struct {
	next    Provider
	limiter *rate.Limiter
}

// NewPaced limits next to perSecond calls with the given burst. A
// non-positive rate disables pacing.
func NewPaced(next Provider, perSecond float64, burst int) *Paced {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Paced{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Generate waits for a token, then delegates.
func (p *Paced) Generate(ctx context.Context, req Request) (Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("provider pacing: %w", err)
	}
	return p.next.Generate(ctx, req)
}
