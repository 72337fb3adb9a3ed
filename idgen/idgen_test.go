package idgen

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7Valid(t *testing.T) {
	gen := UUIDv7()
	id := gen()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("generated id %q does not parse: %v", id, err)
	}
	if u.Version() != 7 {
		t.Errorf("version = %d, want 7", u.Version())
	}
}

func TestUUIDv7Sortable(t *testing.T) {
	// Version 7 embeds a millisecond timestamp, so ids generated in order
	// stay in lexical order. Job listings rely on that.
	gen := UUIDv7()
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen()
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("sequentially generated ids are not in lexical order")
	}
}

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	for _, prefix := range []string{"job_", "evt_"} {
		id := Prefixed(prefix, Default)()
		if !strings.HasPrefix(id, prefix) {
			t.Errorf("id %q missing prefix %q", id, prefix)
		}
		if _, err := uuid.Parse(strings.TrimPrefix(id, prefix)); err != nil {
			t.Errorf("suffix of %q is not a UUID: %v", id, err)
		}
	}
}

func TestNewUsesDefault(t *testing.T) {
	id := New()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("New() = %q, not a UUID: %v", id, err)
	}
}
