package util

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

// IDLength is the length of a paste handle. Four random bytes encode to
// exactly six base64url characters, so the id carries the full 32 bits of
// entropy. That is small enough that collisions happen at scale; callers
// must treat a duplicate insert as retryable rather than impossible.
const IDLength = 6

const idRandomBytes = 4

func GenID() (string, error) {
	buf := make([]byte, idRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "rand fail")
	}
	id := base64.RawURLEncoding.EncodeToString(buf)
	return id[:IDLength], nil
}
