package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	// WHAT: Consecutive UUIDv7 IDs are distinct and parseable.
	// WHY: Every entity ID in the repo comes from this generator.
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
		if _, err := Parse(id); err != nil {
			t.Fatalf("parse %s: %v", id, err)
		}
	}
}

func TestPrefixed(t *testing.T) {
	// WHAT: Prefixed prepends the prefix to every generated ID.
	// WHY: Type-scoped IDs (post_, job_) rely on this composition.
	gen := Prefixed("post_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "post_") {
		t.Errorf("missing prefix: %s", id)
	}
	if _, err := Parse(strings.TrimPrefix(id, "post_")); err != nil {
		t.Errorf("suffix should be a valid UUID: %v", err)
	}
}

func TestTimestamped(t *testing.T) {
	// WHAT: Timestamped IDs start with a UTC timestamp segment.
	// WHY: Filesystem artifacts sort chronologically by name.
	gen := Timestamped(UUIDv7())
	id := gen()
	parts := strings.SplitN(id, "_", 2)
	if len(parts) != 2 {
		t.Fatalf("expected timestamp_suffix, got %s", id)
	}
	if len(parts[0]) != len("20060102T150405Z") {
		t.Errorf("timestamp segment malformed: %s", parts[0])
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	// WHAT: Parse returns an error for non-UUID input.
	// WHY: IDs arriving over HTTP must be validated before use.
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("expected error for garbage input")
	}
}
