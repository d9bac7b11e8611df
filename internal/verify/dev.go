package verify

import (
	"context"
	"strings"
)

// DevVerifier accepts every claim without contacting any provider. Active
// only when no provider credentials are configured; the server logs a
// warning at startup when it is in use.
type DevVerifier struct{}

// NewDevVerifier creates the dev-mode verifier.
func NewDevVerifier() *DevVerifier { return &DevVerifier{} }

// Verify always succeeds and fabricates a stable external id from the handle.
func (DevVerifier) Verify(_ context.Context, handle, _ string) (bool, string, error) {
	return true, "dev:" + strings.TrimPrefix(handle, "@"), nil
}
