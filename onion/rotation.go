package onion

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"

	"github.com/go-errors/errors"
)

const (
	// PeriodSeconds is the length of one descriptor rotation period.
	PeriodSeconds = 86400

	// CookieLen is the length of a client-authorization descriptor cookie.
	CookieLen = 16

	// SecretIDPartLen and DescriptorIDLen are both SHA1 digests.
	SecretIDPartLen = 20
	DescriptorIDLen = 20
)

// phaseOffset returns the per-service rotation offset in seconds. The first
// byte of the permanent id spreads rotation boundaries over the day so that
// services do not all roll over at once.
func phaseOffset(permanentID []byte) int64 {
	return int64(permanentID[0]) * PeriodSeconds / 256
}

// TimePeriod computes the rotating time period index for a service.
//
// time-period = (current-time + permanent-id-byte * 86400 / 256) / 86400
//
// The offset term is truncated before the sum is floor-divided, matching
// the reference arithmetic exactly.
func TimePeriod(timestamp int64, permanentID []byte) (int64, error) {
	if len(permanentID) != PermanentIDLen {
		return 0, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("permanent id must be %d bytes, got %d", PermanentIDLen, len(permanentID)), 0)
	}
	return (timestamp + phaseOffset(permanentID)) / PeriodSeconds, nil
}

// SecondsValid returns the number of seconds until the service's descriptor
// id next changes.
func SecondsValid(timestamp int64, permanentID []byte) (int64, error) {
	if len(permanentID) != PermanentIDLen {
		return 0, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("permanent id must be %d bytes, got %d", PermanentIDLen, len(permanentID)), 0)
	}
	return PeriodSeconds - (timestamp+phaseOffset(permanentID))%PeriodSeconds, nil
}

// SecretIDPart hash-chains the time period, the optional descriptor cookie
// and the replica index.
//
// secret-id-part = H(time-period | descriptor-cookie | replica)
//
// The time period is encoded as 4 bytes big endian and the replica as a
// single byte; field boundaries rely entirely on these fixed widths.
func SecretIDPart(timePeriod int64, cookie []byte, replica int) ([]byte, error) {
	if cookie != nil && len(cookie) != CookieLen {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("descriptor cookie must be %d bytes, got %d", CookieLen, len(cookie)), 0)
	}
	if replica < 0 || replica > 0xFF {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("replica %d does not fit in one byte", replica), 0)
	}

	var period [4]byte
	binary.BigEndian.PutUint32(period[:], uint32(timePeriod))

	hash := sha1.New()
	hash.Write(period[:])
	if cookie != nil {
		hash.Write(cookie)
	}
	hash.Write([]byte{byte(replica)})
	return hash.Sum(nil), nil
}

// DescriptorID computes the 20-byte descriptor lookup identifier.
//
// descriptor-id = H(permanent-id | secret-id-part)
func DescriptorID(permanentID, secretIDPart []byte) ([]byte, error) {
	if len(permanentID) != PermanentIDLen {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("permanent id must be %d bytes, got %d", PermanentIDLen, len(permanentID)), 0)
	}
	if len(secretIDPart) != SecretIDPartLen {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("secret id part must be %d bytes, got %d", SecretIDPartLen, len(secretIDPart)), 0)
	}

	hash := sha1.New()
	hash.Write(permanentID)
	hash.Write(secretIDPart)
	return hash.Sum(nil), nil
}

// DescriptorIDForAddress derives the base32-encoded descriptor id for an
// onion address at the given timestamp. A non-zero deviation queries the
// identifier that many whole periods away from the current one, which
// callers use for clock-skew tolerance.
func DescriptorIDForAddress(address string, timestamp int64, replica int, deviation int64, cookie []byte) (string, error) {
	permanentID, err := DecodePermanentID(address)
	if err != nil {
		return "", err
	}

	timePeriod, err := TimePeriod(timestamp, permanentID)
	if err != nil {
		return "", err
	}
	timePeriod += deviation

	secretIDPart, err := SecretIDPart(timePeriod, cookie, replica)
	if err != nil {
		return "", err
	}

	descriptorID, err := DescriptorID(permanentID, secretIDPart)
	if err != nil {
		return "", err
	}

	return base32Encoding.EncodeToString(descriptorID), nil
}
