// Package solana holds the ledger primitives the custody service needs:
// base58 keys, typed instruction builders, legacy message encoding and
// associated token account derivation.
package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	PublicKeySize = 32
	SignatureSize = 64
)

var (
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// PublicKey is a 32-byte account address.
type PublicKey [PublicKeySize]byte

// PublicKeyFromBase58 decodes a base58 account address.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	var pk PublicKey
	if s == "" {
		return pk, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return PublicKeyFromBytes(raw)
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// MustPublicKey panics on malformed input. Use only for constants.
func MustPublicKey(s string) PublicKey {
	pk, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// Hash is a 32-byte blockhash.
type Hash [32]byte

// HashFromBase58 decodes a base58 blockhash.
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	raw, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("invalid blockhash: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid blockhash: got %d bytes", len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}

// Signature is an ed25519 signature; the first signature of a transaction is
// its id on the ledger.
type Signature [SignatureSize]byte

// SignatureFromBase58 decodes a base58 transaction signature.
func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	raw, err := base58.Decode(s)
	if err != nil {
		return sig, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(raw) != SignatureSize {
		return sig, fmt.Errorf("%w: got %d bytes", ErrInvalidSignature, len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

// NewKeypair generates a fresh ed25519 keypair.
func NewKeypair() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	return priv, nil
}

// EncodePrivateKey returns the base58 form of the 64-byte seed||public key,
// the format wallets import and export.
func EncodePrivateKey(key ed25519.PrivateKey) string {
	return base58.Encode(key)
}

// PrivateKeyFromBase58 decodes a 64-byte secret key and checks that its public
// half matches the one derived from its seed.
func PrivateKeyFromBase58(s string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		Zero(raw)
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidPrivateKey, len(raw))
	}
	key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if subtle.ConstantTimeCompare(key[ed25519.SeedSize:], raw[ed25519.SeedSize:]) != 1 {
		Zero(raw)
		Zero(key)
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
	}
	Zero(raw)
	return key, nil
}

// PublicKeyOf returns the account address of a private key.
func PublicKeyOf(key ed25519.PrivateKey) PublicKey {
	var pk PublicKey
	copy(pk[:], key.Public().(ed25519.PublicKey))
	return pk
}

// Zero overwrites b in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
