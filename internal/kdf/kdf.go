// Package kdf turns passwords into store keys with Argon2id and verifies
// passwords against PHC-formatted hashes.
package kdf

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/famledger/famledger/internal/shared"
)

// ErrMalformedHash is returned when a stored hash or salt header cannot be
// parsed.
var ErrMalformedHash = fmt.Errorf("kdf: malformed hash: %w", shared.ErrInvalidInput)

// ErrCostTooHigh is returned when a hash or header asks for more work than
// the configured parameters allow.
var ErrCostTooHigh = fmt.Errorf("kdf: embedded cost exceeds configured ceiling: %w", shared.ErrInvalidInput)

// DerivedKey is the result of a password derivation.
type DerivedKey struct {
	Key  []byte `json:"key"`
	Salt []byte `json:"salt"`
	Hash string `json:"hash"`
}

// Header returns the hash without its key segment: algorithm, parameters
// and salt. It is safe to persist next to the store.
func (k DerivedKey) Header() string {
	if idx := strings.LastIndex(k.Hash, "$"); idx > 0 {
		return k.Hash[:idx]
	}
	return ""
}

// Deriver derives and verifies keys with a fixed parameter set.
type Deriver struct {
	params Params
	rand   io.Reader
}

// New validates params and constructs a Deriver.
func New(params Params) (*Deriver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Deriver{params: params, rand: rand.Reader}, nil
}

// Params returns the active parameters.
func (d *Deriver) Params() Params {
	return d.params
}

// CryptoConfig reports the parameters DerivePasswordKey uses.
func (d *Deriver) CryptoConfig() CryptoConfig {
	return CryptoConfig{
		MemCost:     d.params.MemoryKiB,
		TimeCost:    d.params.TimeCost,
		Parallelism: d.params.Parallelism,
		KeySize:     d.params.KeySize,
		Algorithm:   Algorithm,
	}
}

// GenerateKey returns KeySize bytes of fresh random key material.
func (d *Deriver) GenerateKey() ([]byte, error) {
	key := make([]byte, d.params.KeySize)
	if _, err := io.ReadFull(d.rand, key); err != nil {
		return nil, fmt.Errorf("kdf: generate key: %w", err)
	}
	return key, nil
}

// DerivePasswordKey derives a key from password using a fresh salt.
func (d *Deriver) DerivePasswordKey(password string) (DerivedKey, error) {
	salt := make([]byte, d.params.SaltSize)
	if _, err := io.ReadFull(d.rand, salt); err != nil {
		return DerivedKey{}, fmt.Errorf("kdf: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, d.params.TimeCost, d.params.MemoryKiB, d.params.Parallelism, d.params.KeySize)
	return DerivedKey{
		Key:  key,
		Salt: salt,
		Hash: encodeHash(d.params, salt, key),
	}, nil
}

// VerifyPasswordKey re-derives with the salt and parameters embedded in
// hash and compares in constant time. Malformed hashes and hashes whose
// cost exceeds the configured ceiling verify as false.
func (d *Deriver) VerifyPasswordKey(password, hash string) bool {
	enc, err := parseEncoded(hash, true)
	if err != nil || !d.params.admits(enc) {
		return false
	}
	candidate := argon2.IDKey([]byte(password), enc.salt, enc.timeCost, enc.memory, enc.parallelism, uint32(len(enc.key)))
	return subtle.ConstantTimeCompare(candidate, enc.key) == 1
}

// Rederive recomputes the key for password from a header produced by
// DerivedKey.Header. A full hash is accepted too; the derived key then has
// the length of its key segment.
func (d *Deriver) Rederive(password, header string) ([]byte, error) {
	enc, err := parseEncoded(header, false)
	if err != nil {
		full, ferr := parseEncoded(header, true)
		if ferr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		enc = full
	}
	if !d.params.admits(enc) {
		return nil, ErrCostTooHigh
	}
	size := d.params.KeySize
	if len(enc.key) > 0 {
		size = uint32(len(enc.key))
	}
	return argon2.IDKey([]byte(password), enc.salt, enc.timeCost, enc.memory, enc.parallelism, size), nil
}
