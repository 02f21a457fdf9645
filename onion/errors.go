package onion

import (
	"github.com/go-errors/errors"
)

var (
	// ErrKeyFormat signals a key of the wrong type or an unsupported size.
	ErrKeyFormat = errors.New("unsupported key type or size")

	// ErrDecryption signals that a private key could not be decrypted
	// within the allowed number of passphrase attempts.
	ErrDecryption = errors.New("could not decrypt private key")

	// ErrInvalidEncoding signals malformed base32 input, a byte buffer of
	// the wrong length, or a message too long to pad.
	ErrInvalidEncoding = errors.New("invalid encoding")
)
