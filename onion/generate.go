package onion

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
)

// GenerateRSAKey generates a fresh V2 RSA 1024 bit service key.
func GenerateRSAKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 1024)
}

// GenerateEd25519Key generates a fresh V3 Ed25519 service key and returns
// the public key material together with the private key.
func GenerateEd25519Key() (Ed25519KeyMaterial, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return Ed25519KeyMaterial(pub), priv, nil
}
