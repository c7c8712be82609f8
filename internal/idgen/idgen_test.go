package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEntityID(t *testing.T) {
	id, err := NewEntityID(PrefixCard)
	if err != nil {
		t.Fatalf("NewEntityID: %v", err)
	}
	if !strings.HasPrefix(id, PrefixCard) {
		t.Errorf("id %q missing prefix %q", id, PrefixCard)
	}
	if len(id) != len(PrefixCard)+Length {
		t.Errorf("id %q has length %d, want %d", id, len(id), len(PrefixCard)+Length)
	}

	// Collisions over a small sample would indicate a broken generator.
	seen := make(map[string]bool)
	for range 1000 {
		id, err := NewEntityID(PrefixBoard)
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewRowKey_TimeOrdered(t *testing.T) {
	a, err := NewRowKey()
	if err != nil {
		t.Fatalf("NewRowKey: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	b, err := NewRowKey()
	if err != nil {
		t.Fatalf("NewRowKey: %v", err)
	}

	if !(a < b) {
		t.Errorf("row keys not time-ordered: %q then %q", a, b)
	}

	if u, err := uuid.Parse(a); err != nil || u.Version() != 7 {
		t.Errorf("row key %q is not a UUIDv7 (err %v)", a, err)
	}
}

func TestNewSecret(t *testing.T) {
	s, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	if len(s) != 32 {
		t.Errorf("secret length %d, want 32", len(s))
	}
	s2, _ := NewSecret()
	if s == s2 {
		t.Error("secrets should not repeat")
	}
}
