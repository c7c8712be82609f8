// Package tenant carries the current account identity through
// context.Context. The account is set once at the request (or job) boundary
// and read explicitly by everything downstream; there is no process-wide
// current account.
package tenant

import (
	"context"
	"errors"
	"fmt"
)

type ctxKey struct{}

// ErrMissing is returned when an operation requires an account but the
// context carries none.
var ErrMissing = errors.New("tenant: no account in context")

// MismatchError reports an operation that crossed an account boundary.
// It is always fatal and never silently corrected.
type MismatchError struct {
	Want string // account the context is scoped to
	Got  string // account the entity belongs to
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("tenant: account mismatch: context is scoped to %s, entity belongs to %s", e.Want, e.Got)
}

// WithAccount returns a context scoped to the given account.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, accountID)
}

// AccountID returns the account the context is scoped to, or ErrMissing.
func AccountID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok || id == "" {
		return "", ErrMissing
	}
	return id, nil
}

// Check verifies that the entity's account matches the context's account.
// A mismatch is returned as a *MismatchError.
func Check(ctx context.Context, entityAccountID string) error {
	want, err := AccountID(ctx)
	if err != nil {
		return err
	}
	if entityAccountID != want {
		return &MismatchError{Want: want, Got: entityAccountID}
	}
	return nil
}
