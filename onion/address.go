package onion

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/go-errors/errors"
	"golang.org/x/crypto/sha3"
)

// standard base32 encoding with lowercase characters
var base32Encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

const (
	// checksumPrefix is the fixed domain separator of the V3 address
	// checksum, per rend-spec-v3 "Encoding onion addresses".
	checksumPrefix = ".onion checksum"

	// v3Version is the version byte embedded in every V3 address.
	v3Version = 0x03

	// V2AddressLen and V3AddressLen are the encoded address lengths
	// without the ".onion" suffix.
	V2AddressLen = 16
	V3AddressLen = 56
)

// EncodeAddress returns the onion address for the given key material,
// dispatching on the key variant.
func EncodeAddress(key KeyMaterial) (string, error) {
	switch k := key.(type) {
	case *RSAKeyMaterial:
		return EncodeV2Address(PermanentID(k))
	case Ed25519KeyMaterial:
		return EncodeV3Address(k)
	}
	return "", errors.WrapPrefix(ErrKeyFormat, fmt.Sprintf("unrecognized key material %T", key), 0)
}

// EncodeV2Address base32-encodes a 10-byte permanent id.
//
// 3. Generate a 16-character encoding of H', using base32 as defined
//    in RFC 4648.
func EncodeV2Address(permanentID []byte) (string, error) {
	if len(permanentID) != PermanentIDLen {
		return "", errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("permanent id must be %d bytes, got %d", PermanentIDLen, len(permanentID)), 0)
	}
	return base32Encoding.EncodeToString(permanentID), nil
}

// EncodeV3Address encodes a raw Ed25519 public key as a V3 address.
//
// CHECKSUM = H(".onion checksum" | PUBKEY | VERSION)[:2]
// onion_address = base32(PUBKEY | CHECKSUM | VERSION)
func EncodeV3Address(key Ed25519KeyMaterial) (string, error) {
	if len(key) != Ed25519PublicKeyLen {
		return "", errors.WrapPrefix(ErrKeyFormat,
			fmt.Sprintf("ed25519 public key must be %d bytes, got %d", Ed25519PublicKeyLen, len(key)), 0)
	}

	checksum := v3Checksum(key)

	var buf bytes.Buffer
	buf.Write(key)
	buf.Write(checksum)
	buf.WriteByte(v3Version)

	return base32Encoding.EncodeToString(buf.Bytes()), nil
}

// DecodePermanentID decodes a V2 onion address back into its 10-byte
// permanent id. Input may use either case.
func DecodePermanentID(address string) ([]byte, error) {
	decoded, err := base32Encoding.DecodeString(strings.ToLower(address))
	if err != nil {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("malformed base32 address %q", address), 0)
	}
	if len(decoded) != PermanentIDLen {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("address %q decodes to %d bytes, want %d", address, len(decoded), PermanentIDLen), 0)
	}
	return decoded, nil
}

// DecodeV3Address decodes a V3 onion address, verifying the embedded
// checksum and version byte, and returns the raw public key.
func DecodeV3Address(address string) (Ed25519KeyMaterial, error) {
	decoded, err := base32Encoding.DecodeString(strings.ToLower(address))
	if err != nil {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("malformed base32 address %q", address), 0)
	}
	if len(decoded) != Ed25519PublicKeyLen+3 {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("address %q decodes to %d bytes, want %d", address, len(decoded), Ed25519PublicKeyLen+3), 0)
	}

	key := Ed25519KeyMaterial(decoded[:Ed25519PublicKeyLen])
	checksum := decoded[Ed25519PublicKeyLen : Ed25519PublicKeyLen+2]
	version := decoded[Ed25519PublicKeyLen+2]

	if version != v3Version {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("address %q has version %d, want %d", address, version, v3Version), 0)
	}
	if !bytes.Equal(checksum, v3Checksum(key)) {
		return nil, errors.WrapPrefix(ErrInvalidEncoding,
			fmt.Sprintf("address %q has a bad checksum", address), 0)
	}

	return key, nil
}

func v3Checksum(key Ed25519KeyMaterial) []byte {
	hash := sha3.New256()
	hash.Write([]byte(checksumPrefix))
	hash.Write(key)
	hash.Write([]byte{v3Version})
	return hash.Sum(nil)[:2]
}
