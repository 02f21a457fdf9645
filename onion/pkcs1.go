package onion

import (
	"fmt"

	"github.com/go-errors/errors"
)

const (
	// PaddedMessageLen is the fixed size of a padded block, matching a
	// 1024-bit legacy signing key.
	PaddedMessageLen = 128

	// MaxPaddedMessageInputLen leaves room for the two type bytes, the
	// separator and at least eight padding bytes.
	MaxPaddedMessageInputLen = 125
)

// AddPKCS1Padding builds the fixed 128-byte PKCS#1 type 1 block used for
// legacy descriptor signature formatting.
//
// padded = 0x00 0x01 | 0xFF * (125 - len(message)) | 0x00 | message
func AddPKCS1Padding(message []byte) ([]byte, error) {
	if len(message) > MaxPaddedMessageInputLen {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("message of %d bytes exceeds %d", len(message), MaxPaddedMessageInputLen), 0)
	}

	padded := make([]byte, 0, PaddedMessageLen)
	padded = append(padded, 0x00, 0x01)
	for i := 0; i < MaxPaddedMessageInputLen-len(message); i++ {
		padded = append(padded, 0xFF)
	}
	padded = append(padded, 0x00)
	padded = append(padded, message...)

	if len(padded) != PaddedMessageLen {
		return nil, errors.Errorf("padded block is %d bytes, want %d", len(padded), PaddedMessageLen)
	}

	return padded, nil
}
