// Package verify checks that a human owner published the claim code on an
// external platform before an agent is handed to them.
package verify

import "context"

// Verifier checks whether the given external handle has published the
// verification code. On success it returns the stable external id of the
// publishing account.
type Verifier interface {
	Verify(ctx context.Context, handle, code string) (ok bool, externalID string, err error)
}
