// Package cursor encodes feed pagination positions as opaque tokens.
//
// A cursor captures the last-seen (updated_at, id) sort key. Tokens are
// base64 so consumers treat them as opaque; a token that fails to decode is
// reported as ErrInvalid and the feed restarts from the top rather than
// erroring; stale cursors are expected, not exceptional.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is returned for tokens that cannot be decoded.
var ErrInvalid = errors.New("cursor: invalid token")

// Encode packs an (updatedAt, id) pair into an opaque token.
func Encode(updatedAt int64, id string) string {
	raw := strconv.FormatInt(updatedAt, 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode unpacks a token produced by Encode.
func Decode(token string) (updatedAt int64, id string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return 0, "", ErrInvalid
	}
	updatedAt, err = strconv.ParseInt(ts, 10, 64)
	if err != nil || updatedAt <= 0 {
		return 0, "", ErrInvalid
	}
	return updatedAt, id, nil
}
