// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

const nonceSize = 12

// ErrNotEncrypted reports that a payload lacks the encrypted-line wrapper.
var ErrNotEncrypted = errors.New("payload is not an encrypted entry")

// encryptedLine is the on-disk wrapper for an encrypted ledger line.
// The payload is urlsafe base64 of nonce||ciphertext.
type encryptedLine struct {
	Enc     string `json:"enc"`
	Version int    `json:"v"`
}

// Cipher performs AES-GCM encryption of ledger lines and image files.
// The key lives in a memguard enclave and is only materialized for the
// duration of each operation.
type Cipher struct {
	key *memguard.Enclave
}

// NewCipher builds a Cipher from the urlsafe-base64 key string. The key
// must decode to 16, 24, or 32 bytes.
func NewCipher(encodedKey string) (*Cipher, error) {
	raw, err := decodeURLSafe(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	switch len(raw) {
	case 16, 24, 32:
	default:
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("encryption key must decode to 16, 24, or 32 bytes, got %d", len(raw))
	}
	// NewEnclave wipes raw after sealing.
	return &Cipher{key: memguard.NewEnclave(raw)}, nil
}

// aead opens the enclave and builds the AES-GCM instance. The returned
// buffer must be destroyed by the caller.
func (c *Cipher) aead() (cipher.AEAD, *memguard.LockedBuffer, error) {
	buf, err := c.key.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("opening key enclave: %w", err)
	}
	block, err := aes.NewCipher(buf.Bytes())
	if err != nil {
		buf.Destroy()
		return nil, nil, fmt.Errorf("building cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		buf.Destroy()
		return nil, nil, fmt.Errorf("building GCM: %w", err)
	}
	return aead, buf, nil
}

// EncryptBytes seals data and returns nonce||ciphertext.
func (c *Cipher) EncryptBytes(data []byte) ([]byte, error) {
	aead, buf, err := c.aead()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

// DecryptBytes opens a nonce||ciphertext payload.
func (c *Cipher) DecryptBytes(payload []byte) ([]byte, error) {
	if len(payload) < nonceSize {
		return nil, errors.New("encrypted payload is too short")
	}
	aead, buf, err := c.aead()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	plain, err := aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting payload: %w", err)
	}
	return plain, nil
}

// EncryptLine wraps a cleartext JSON line as {"enc": <b64>, "v": 1}.
func (c *Cipher) EncryptLine(plain []byte) ([]byte, error) {
	payload, err := c.EncryptBytes(plain)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encryptedLine{
		Enc:     base64.RawURLEncoding.EncodeToString(payload),
		Version: 1,
	})
}

// DecryptLine unwraps an encrypted line back to cleartext JSON. Lines
// without the wrapper return ErrNotEncrypted so callers can fall through
// to plain parsing (pre-encryption ledgers stay readable).
func (c *Cipher) DecryptLine(raw []byte) ([]byte, error) {
	var wrapper encryptedLine
	if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Enc == "" {
		return nil, ErrNotEncrypted
	}
	payload, err := decodeURLSafe(wrapper.Enc)
	if err != nil {
		return nil, fmt.Errorf("decoding encrypted entry: %w", err)
	}
	return c.DecryptBytes(payload)
}

// decodeURLSafe accepts urlsafe base64 with or without padding.
func decodeURLSafe(s string) ([]byte, error) {
	for len(s)%4 != 0 {
		s += "="
	}
	return base64.URLEncoding.DecodeString(s)
}
