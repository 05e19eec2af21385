// Package crypt seals archived documents with AES-256-GCM. The key is
// derived from a passphrase, the nonce is prepended to the ciphertext.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyIterations = 4096
	keyLength     = 32
)

var salt = []byte("odi-scan archive")

var ErrCiphertextTooShort = errors.New("ciphertext too short")

type Crypt struct {
	gcm cipher.AEAD
}

func New(passphrase string) (*Crypt, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	key := pbkdf2.Key([]byte(passphrase), salt, keyIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Crypt{gcm: gcm}, nil
}

func (c *Crypt) Encrypt(input io.Reader) (io.ReadSeeker, error) {
	plainText, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return bytes.NewReader(c.gcm.Seal(nonce, nonce, plainText, nil)), nil
}

func (c *Crypt) Decrypt(input io.Reader) (io.ReadSeeker, error) {
	data, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	plainText, err := c.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return bytes.NewReader(plainText), nil
}
