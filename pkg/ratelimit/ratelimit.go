package ratelimit

import (
	"context"
	"net/http"

	"github.com/verso-labs/companion/pkg/errx"
)

// Limiter is the admission-control collaborator. The chat pipeline only
// consumes the verdict; the limiting algorithm lives in the adapter.
type Limiter interface {
	// Allow reports whether a request for the identifier may proceed
	Allow(ctx context.Context, identifier string) (bool, error)
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("RATELIMIT")

var (
	CodeLimitExceeded = ErrRegistry.Register("EXCEEDED", errx.TypeRateLimit, http.StatusTooManyRequests, "Too many requests")
)

func ErrLimitExceeded() *errx.Error {
	return ErrRegistry.New(CodeLimitExceeded)
}
