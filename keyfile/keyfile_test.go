package keyfile

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-errors/errors"
	"github.com/the-onion-land/onionidd/onion"
)

func writeKeyFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("could not write key file: %v", err)
	}
	return path
}

// ed25519Container builds a Tor secret key container from a standard
// ed25519 seed: tag, then the clamped first half of SHA512(seed).
func ed25519Container(seed []byte) []byte {
	expanded := sha512.Sum512(seed)
	expanded[0] &= 248
	expanded[31] &= 63
	expanded[31] |= 64

	container := make([]byte, 0, 96)
	container = append(container, []byte(ed25519SecretTag)...)
	container = append(container, 0x00, 0x00, 0x00)
	container = append(container, expanded[:]...)
	return container
}

func TestLoadEd25519Container(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, ed25519.SeedSize)
	path := writeKeyFile(t, "hs_ed25519_secret_key", ed25519Container(seed))

	key, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	edKey, ok := key.(*Ed25519PrivateKey)
	if !ok {
		t.Fatalf("loaded key has type %T, want *Ed25519PrivateKey", key)
	}
	if len(edKey.Secret) != 32 {
		t.Fatalf("secret scalar is %d bytes, want 32", len(edKey.Secret))
	}
	if edKey.Material().AddressVersion() != 3 {
		t.Fatalf("material has version %d, want 3", edKey.Material().AddressVersion())
	}

	// The derived public key must match the standard ed25519 derivation
	// from the same seed.
	want := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if !bytes.Equal(edKey.Public, []byte(want)) {
		t.Fatalf("derived public key %x, want %x", edKey.Public, want)
	}
}

func TestLoadEd25519ContainerTruncated(t *testing.T) {
	path := writeKeyFile(t, "hs_ed25519_secret_key", []byte(ed25519SecretTag))

	if _, err := Load(path, nil); !errors.Is(err, onion.ErrKeyFormat) {
		t.Fatalf("truncated container returned %v, want ErrKeyFormat", err)
	}
}

func rsaPEM(t *testing.T, key *rsa.PrivateKey, passphrase string) []byte {
	t.Helper()

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}

	if passphrase != "" {
		var err error
		block, err = x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, []byte(passphrase), x509.PEMCipherAES128)
		if err != nil {
			t.Fatalf("could not encrypt PEM block: %v", err)
		}
	}

	return pem.EncodeToMemory(block)
}

func TestLoadPlaintextRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("could not generate key: %v", err)
	}
	path := writeKeyFile(t, "private_key", rsaPEM(t, key, ""))

	loaded, err := Load(path, &Options{
		Passphrase: func(string) (string, error) {
			t.Fatal("plaintext key must not prompt for a passphrase")
			return "", nil
		},
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	rsaKey, ok := loaded.(*RSAPrivateKey)
	if !ok {
		t.Fatalf("loaded key has type %T, want *RSAPrivateKey", loaded)
	}
	if rsaKey.N.Cmp(key.N) != 0 {
		t.Fatal("loaded key does not match the written key")
	}
	if rsaKey.Material().AddressVersion() != 2 {
		t.Fatalf("material has version %d, want 2", rsaKey.Material().AddressVersion())
	}
}

func TestLoadEncryptedRSARetries(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("could not generate key: %v", err)
	}
	path := writeKeyFile(t, "private_key", rsaPEM(t, key, "sesame"))

	passphrases := []string{"wrong", "still wrong", "sesame"}
	attempt := 0

	loaded, err := Load(path, &Options{
		Passphrase: func(string) (string, error) {
			pass := passphrases[attempt]
			attempt++
			return pass, nil
		},
	})
	if err != nil {
		t.Fatalf("load failed after %d attempts: %v", attempt, err)
	}
	if attempt != 3 {
		t.Fatalf("made %d passphrase attempts, want 3", attempt)
	}
	if loaded.(*RSAPrivateKey).N.Cmp(key.N) != 0 {
		t.Fatal("loaded key does not match the written key")
	}
}

func TestLoadEncryptedRSAExhaustsRetries(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("could not generate key: %v", err)
	}
	path := writeKeyFile(t, "private_key", rsaPEM(t, key, "sesame"))

	attempts := 0
	_, err = Load(path, &Options{
		Passphrase: func(string) (string, error) {
			attempts++
			return "wrong", nil
		},
	})
	if !errors.Is(err, onion.ErrDecryption) {
		t.Fatalf("exhausted retries returned %v, want ErrDecryption", err)
	}
	if attempts != DefaultRetries {
		t.Fatalf("made %d passphrase attempts, want %d", attempts, DefaultRetries)
	}
}

func TestLoadAccepts1023BitKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1023)
	if err != nil {
		t.Fatalf("could not generate key: %v", err)
	}
	path := writeKeyFile(t, "private_key", rsaPEM(t, key, ""))

	if _, err := Load(path, nil); err != nil {
		t.Fatalf("load of 1023-bit key failed: %v", err)
	}
}

func TestLoadRejectsUnsupportedKeySize(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 512)
	if err != nil {
		t.Fatalf("could not generate key: %v", err)
	}
	path := writeKeyFile(t, "private_key", rsaPEM(t, key, ""))

	if _, err := Load(path, nil); !errors.Is(err, onion.ErrKeyFormat) {
		t.Fatalf("512-bit key returned %v, want ErrKeyFormat", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("loading a missing file must fail")
	}
}

func TestLoadGarbage(t *testing.T) {
	path := writeKeyFile(t, "private_key", []byte("not a key at all"))

	if _, err := Load(path, nil); !errors.Is(err, onion.ErrDecryption) {
		t.Fatalf("garbage input returned %v, want ErrDecryption", err)
	}
}
