// Package keyfile reads hidden service private key containers from disk.
// It recognizes the raw Ed25519 secret container written by Tor as well as
// plaintext and passphrase-encrypted PEM RSA keys.
package keyfile

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"filippo.io/edwards25519"
	"github.com/go-errors/errors"
	"github.com/howeyc/gopass"
	"github.com/the-onion-land/onionidd/onion"
)

const (
	// ed25519SecretTag marks a raw Tor Ed25519 secret key container. The
	// tag occupies the first 32 bytes of the file (NUL padded) and the
	// secret scalar sits immediately after it.
	ed25519SecretTag = "== ed25519v1-secret: type0 =="

	ed25519SecretOffset = 32
	ed25519SecretEnd    = 64

	// encryptedPEMMarker signals that a passphrase prompt is required.
	encryptedPEMMarker = "Proc-Type: 4,ENCRYPTED"

	// DefaultRetries is the number of passphrase attempts before giving up.
	DefaultRetries = 3
)

// PassphraseFunc supplies the passphrase for an encrypted key file. It is
// injectable so tests can feed canned passphrases instead of prompting.
type PassphraseFunc func(path string) (string, error)

// Options controls key loading. The zero value prompts on the terminal and
// allows DefaultRetries attempts.
type Options struct {
	Passphrase PassphraseFunc
	Retries    int
}

// PrivateKey is a loaded service key of either variant.
type PrivateKey interface {
	// Material returns the public key material for address and
	// identifier derivation.
	Material() onion.KeyMaterial
}

// RSAPrivateKey is a legacy V2 service key.
type RSAPrivateKey struct {
	*rsa.PrivateKey
}

func (k *RSAPrivateKey) Material() onion.KeyMaterial {
	return onion.NewRSAKeyMaterial(&k.PublicKey)
}

// Ed25519PrivateKey is a V3 service key in Tor's expanded form. Secret is
// the 32-byte clamped scalar from the key container.
type Ed25519PrivateKey struct {
	Secret []byte
	Public onion.Ed25519KeyMaterial
}

func (k *Ed25519PrivateKey) Material() onion.KeyMaterial {
	return k.Public
}

// Load reads a private key container from path, prompting for a passphrase
// if the key looks encrypted. PEM decode failures are retried with a fresh
// passphrase up to the configured retry count.
func Load(path string, opts *Options) (PrivateKey, error) {
	if opts == nil {
		opts = &Options{}
	}
	passphrase := opts.Passphrase
	if passphrase == nil {
		passphrase = promptPassphrase
	}
	retries := opts.Retries
	if retries == 0 {
		retries = DefaultRetries
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("could not read key file %s: %v", path, err)
	}

	if bytes.HasPrefix(raw, []byte(ed25519SecretTag)) {
		return loadEd25519(raw)
	}

	return loadRSA(raw, path, passphrase, retries)
}

func loadEd25519(raw []byte) (*Ed25519PrivateKey, error) {
	if len(raw) < ed25519SecretEnd {
		return nil, errors.WrapPrefix(onion.ErrKeyFormat,
			fmt.Sprintf("ed25519 key container of %d bytes is truncated", len(raw)), 0)
	}

	secret := make([]byte, ed25519SecretEnd-ed25519SecretOffset)
	copy(secret, raw[ed25519SecretOffset:ed25519SecretEnd])

	public, err := ed25519Public(secret)
	if err != nil {
		return nil, errors.WrapPrefix(onion.ErrKeyFormat, "bad ed25519 secret scalar", 0)
	}

	return &Ed25519PrivateKey{Secret: secret, Public: public}, nil
}

// ed25519Public derives the public key from Tor's expanded secret scalar by
// scalar-base multiplication. The scalar in the container is already
// clamped; clamping again is a no-op.
func ed25519Public(secret []byte) (onion.Ed25519KeyMaterial, error) {
	s, err := edwards25519.NewScalar().SetBytesWithClamping(secret)
	if err != nil {
		return nil, err
	}
	point := new(edwards25519.Point).ScalarBaseMult(s)
	return onion.Ed25519KeyMaterial(point.Bytes()), nil
}

func loadRSA(raw []byte, path string, passphrase PassphraseFunc, retries int) (*RSAPrivateKey, error) {
	text := string(raw)
	encrypted := strings.Contains(text, encryptedPEMMarker)

	for attempt := 0; attempt < retries; attempt++ {
		var pass string
		if encrypted {
			var err error
			pass, err = passphrase(path)
			if err != nil {
				return nil, errors.Errorf("could not read passphrase: %v", err)
			}
		}

		key, err := importRSA(raw, pass)
		if err != nil {
			// Most likely a wrong passphrase, ask again.
			continue
		}

		bits := key.N.BitLen()
		if bits != 1023 && bits != 1024 {
			return nil, errors.WrapPrefix(onion.ErrKeyFormat,
				fmt.Sprintf("key is %d bits, want 1023 or 1024", bits), 0)
		}

		return &RSAPrivateKey{key}, nil
	}

	return nil, errors.WrapPrefix(onion.ErrDecryption,
		fmt.Sprintf("could not import RSA key from %s", path), 0)
}

func importRSA(raw []byte, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) {
		var err error
		der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, err
		}
	}

	return x509.ParsePKCS1PrivateKey(der)
}

func promptPassphrase(path string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter the password for the private key (%s): ", path)
	pass, err := gopass.GetPasswd()
	if err != nil {
		return "", err
	}
	return string(pass), nil
}
