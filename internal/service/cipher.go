package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"social-custody-gateway/pkg/apperror"

	"golang.org/x/crypto/hkdf"
)

const (
	aesKeySize = 32
	hkdfInfo   = "social-custody-gateway/wallet-secret/v1"
)

// AESCipher implements ports.Cipher using AES-256-GCM.
// Envelopes are hex(nonce || ciphertext || tag).
type AESCipher struct {
	aead cipher.AEAD
}

// NewAESCipher creates an AES-256-GCM cipher from the master secret.
// A 64-char hex secret is used as the raw key; anything else is stretched to
// 32 bytes with HKDF-SHA256.
func NewAESCipher(masterSecret string) (*AESCipher, error) {
	if masterSecret == "" {
		return nil, errors.New("cipher master secret is empty")
	}

	key, err := deriveKey(masterSecret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &AESCipher{aead: aead}, nil
}

func deriveKey(masterSecret string) ([]byte, error) {
	if len(masterSecret) == 2*aesKeySize {
		if key, err := hex.DecodeString(masterSecret); err == nil {
			return key, nil
		}
	}

	key := make([]byte, aesKeySize)
	r := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving AES key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *AESCipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperror.ErrCipher(fmt.Errorf("generating nonce: %w", err))
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a hex envelope produced by Encrypt.
func (c *AESCipher) Decrypt(envelope string) ([]byte, error) {
	raw, err := hex.DecodeString(envelope)
	if err != nil {
		return nil, apperror.ErrCipher(fmt.Errorf("decoding envelope: %w", err))
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return nil, apperror.ErrCipher(errors.New("envelope too short"))
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, apperror.ErrCipher(fmt.Errorf("decrypting: %w", err))
	}
	return plaintext, nil
}
