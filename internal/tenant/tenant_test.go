package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestAccountID(t *testing.T) {
	ctx := WithAccount(context.Background(), "acc-1")
	id, err := AccountID(ctx)
	if err != nil {
		t.Fatalf("AccountID: %v", err)
	}
	if id != "acc-1" {
		t.Errorf("got %q, want acc-1", id)
	}
}

func TestAccountID_Missing(t *testing.T) {
	if _, err := AccountID(context.Background()); !errors.Is(err, ErrMissing) {
		t.Errorf("got %v, want ErrMissing", err)
	}
	// An empty account is treated as missing, not as a real tenant.
	if _, err := AccountID(WithAccount(context.Background(), "")); !errors.Is(err, ErrMissing) {
		t.Errorf("empty account: got %v, want ErrMissing", err)
	}
}

func TestCheck(t *testing.T) {
	ctx := WithAccount(context.Background(), "acc-1")

	if err := Check(ctx, "acc-1"); err != nil {
		t.Errorf("same account should pass: %v", err)
	}

	err := Check(ctx, "acc-2")
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want *MismatchError", err)
	}
	if mismatch.Want != "acc-1" || mismatch.Got != "acc-2" {
		t.Errorf("unexpected mismatch detail: %+v", mismatch)
	}

	if err := Check(context.Background(), "acc-1"); !errors.Is(err, ErrMissing) {
		t.Errorf("missing tenant: got %v, want ErrMissing", err)
	}
}
