package maps

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned before any network call when the Google
// Maps credential is absent or still a placeholder.
var ErrMissingAPIKey = errors.New("google maps api key is missing or a placeholder")

// ErrNoResults marks a lookup the upstream answered with zero results.
// An empty answer is an empty outcome, not an upstream failure.
var ErrNoResults = errors.New("no matching results")

// UpstreamError is any directions/geocoding response whose status is
// neither OK nor ZERO_RESULTS.
type UpstreamError struct {
	Status  string
	Message string
}

func (e *UpstreamError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("maps api returned status %s", e.Status)
	}
	return fmt.Sprintf("maps api returned status %s: %s", e.Status, e.Message)
}
