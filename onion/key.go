package onion

import (
	"crypto/rsa"
	"crypto/sha1"
	"encoding/asn1"
	"math/big"
)

// KeyMaterial is the public key material of a hidden service. It is a
// closed set of two variants: RSA keys addressed by the legacy V2 scheme
// and Ed25519 keys addressed by the V3 scheme.
type KeyMaterial interface {
	// PublicBytes returns the encoded form of the public key that address
	// and identifier derivation operates on.
	PublicBytes() []byte

	// AddressVersion returns the onion address version of the key, 2 or 3.
	AddressVersion() int
}

// RSAKeyMaterial is the public half of a legacy V2 RSA service key.
type RSAKeyMaterial struct {
	N *big.Int
	E *big.Int
}

// NewRSAKeyMaterial wraps an rsa.PublicKey.
func NewRSAKeyMaterial(key *rsa.PublicKey) *RSAKeyMaterial {
	return &RSAKeyMaterial{
		N: new(big.Int).Set(key.N),
		E: big.NewInt(int64(key.E)),
	}
}

// rsaPublicKeyDER mirrors the PKCS#1 RSAPublicKey ASN.1 structure.
type rsaPublicKeyDER struct {
	N *big.Int
	E *big.Int
}

// PublicBytes returns the DER-encoded SEQUENCE of modulus and exponent.
// This encoding is only ever used as hash input, never persisted.
func (k *RSAKeyMaterial) PublicBytes() []byte {
	der, err := asn1.Marshal(rsaPublicKeyDER{N: k.N, E: k.E})
	if err != nil {
		// asn1.Marshal on two integers cannot fail at runtime
		panic(err)
	}
	return der
}

func (k *RSAKeyMaterial) AddressVersion() int {
	return 2
}

// Ed25519KeyMaterial is a raw 32-byte Ed25519 public key of a V3 service.
type Ed25519KeyMaterial []byte

// Ed25519PublicKeyLen is the exact length of V3 public key material.
const Ed25519PublicKeyLen = 32

func (k Ed25519KeyMaterial) PublicBytes() []byte {
	return []byte(k)
}

func (k Ed25519KeyMaterial) AddressVersion() int {
	return 3
}

// KeyDigest computes the SHA1 digest over the DER-encoded public key.
//
// 1. Let H = H(PK).
func KeyDigest(key *RSAKeyMaterial) []byte {
	hash := sha1.New()
	hash.Write(key.PublicBytes())
	return hash.Sum(nil)
}

// PermanentIDLen is the length of the truncated key digest that permanently
// identifies a V2 service.
const PermanentIDLen = 10

// PermanentID computes the stable 10-byte service identifier.
//
// 2. Let H' = the first 80 bits of H, considering each octet from
//    most significant bit to least significant bit.
func PermanentID(key *RSAKeyMaterial) []byte {
	return KeyDigest(key)[:PermanentIDLen]
}
