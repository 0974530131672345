package ledger

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
)

// Signer produces the cryptographic material for state-mutating ledger messages.
type Signer interface {
	// Address returns the wallet address controlled by the signing credential.
	Address() string
	// Owner returns the public part of the credential as transmitted on the wire.
	Owner() string
	// Sign signs the given digest.
	Sign(digest []byte) ([]byte, error)
}

// jwk is the JSON shape of the RSA key file holding the service credential.
type jwk struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d"`
	P   string `json:"p"`
	Q   string `json:"q"`
}

// FileSigner is a Signer backed by an RSA key loaded from a JSON key file.
type FileSigner struct {
	key     *rsa.PrivateKey
	owner   string
	address string
}

// LoadSigner reads and parses the JSON key file at path. The wallet address controlled by the key is the
// base64url encoding of the SHA-256 hash of the public modulus, which is the network's deterministic
// address derivation.
func LoadSigner(path string) (*FileSigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: cannot read key file %s: %w", path, err)
	}

	var k jwk
	if err = json.Unmarshal(raw, &k); err != nil {
		return nil, fmt.Errorf("ledger: cannot parse key file %s: %w", path, err)
	}

	if k.Kty != "RSA" {
		return nil, fmt.Errorf("ledger: unsupported key type %q in %s", k.Kty, path)
	}

	n, err := b64Int(k.N)
	if err != nil {
		return nil, fmt.Errorf("ledger: bad modulus in key file: %w", err)
	}

	e, err := b64Int(k.E)
	if err != nil {
		return nil, fmt.Errorf("ledger: bad public exponent in key file: %w", err)
	}

	d, err := b64Int(k.D)
	if err != nil {
		return nil, fmt.Errorf("ledger: bad private exponent in key file: %w", err)
	}

	p, err := b64Int(k.P)
	if err != nil {
		return nil, fmt.Errorf("ledger: bad prime in key file: %w", err)
	}

	q, err := b64Int(k.Q)
	if err != nil {
		return nil, fmt.Errorf("ledger: bad prime in key file: %w", err)
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	key.Precompute()

	if err = key.Validate(); err != nil {
		return nil, fmt.Errorf("ledger: invalid key in %s: %w", path, err)
	}

	hash := sha256.Sum256(n.Bytes())

	return &FileSigner{
		key:     key,
		owner:   k.N,
		address: base64.RawURLEncoding.EncodeToString(hash[:]),
	}, nil
}

// Address returns the wallet address derived from the credential.
func (s *FileSigner) Address() string {
	return s.address
}

// Owner returns the base64url encoded public modulus.
func (s *FileSigner) Owner() string {
	return s.owner
}

// Sign signs the digest with RSA-PSS over SHA-256, the signature scheme the ledger gateway verifies.
func (s *FileSigner) Sign(digest []byte) ([]byte, error) {
	return rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest,
		&rsa.PSSOptions{SaltLength: 32, Hash: crypto.SHA256}) //nolint:gomnd // salt length fixed by the gateway
}

// b64Int decodes a base64url encoded big-endian integer.
func b64Int(s string) (*big.Int, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(b), nil
}
