package retrieval

import (
	"context"
	"errors"
)

// Provider failure classes. The orchestrator absorbs exactly these (plus context expiry) and
// moves on to the next provider.
var (
	ErrProviderTimeout   = errors.New("provider timed out")
	ErrProviderTransport = errors.New("provider transport failure")
	ErrProviderStatus    = errors.New("provider returned non-success status")
	ErrProviderPayload   = errors.New("provider payload is unparsable")
	ErrNoResults         = errors.New("provider returned no results")
)

var absorbedErrors = []error{
	ErrProviderTimeout,
	ErrProviderTransport,
	ErrProviderStatus,
	ErrProviderPayload,
	ErrNoResults,
	context.DeadlineExceeded,
	context.Canceled,
}

// IsProviderError reports whether err belongs to the enumerated provider failure classes
func IsProviderError(err error) bool {
	for _, target := range absorbedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
