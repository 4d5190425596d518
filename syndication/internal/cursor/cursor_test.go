package cursor

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	// WHAT: Decode(Encode(ts, id)) returns the original pair.
	// WHY: A lossy cursor would skip or duplicate feed items.
	ts, id, err := Decode(Encode(1735689600123, "post_abc"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ts != 1735689600123 || id != "post_abc" {
		t.Errorf("got (%d, %q)", ts, id)
	}
}

func TestIDWithColon(t *testing.T) {
	// WHAT: IDs containing ':' survive the round trip.
	// WHY: Cut splits on the first colon only; the rest is the id.
	_, id, err := Decode(Encode(42, "a:b:c"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != "a:b:c" {
		t.Errorf("id: got %q", id)
	}
}

func TestInvalidTokens(t *testing.T) {
	// WHAT: Garbage tokens return ErrInvalid, never panic.
	// WHY: Stale or corrupted cursors restart the feed; they must be
	// detected cleanly.
	for _, tok := range []string{
		"",
		"not base64 !!!",
		"aGVsbG8",     // decodes but no separator
		"OmFiYw",      // ":abc": missing timestamp
		"eHg6YWJj",    // "xx:abc": non-numeric timestamp
		"LTU6YWJj",    // "-5:abc": non-positive timestamp
		"MTIzNDU6",    // "12345:": empty id
	} {
		if _, _, err := Decode(tok); !errors.Is(err, ErrInvalid) {
			t.Errorf("Decode(%q): expected ErrInvalid, got %v", tok, err)
		}
	}
}
