package kdf

import (
	"fmt"

	"github.com/famledger/famledger/internal/shared"
)

// Algorithm names the key-derivation function in use.
const Algorithm = "Argon2id"

const (
	minMemoryKiB = 8 * 1024
	maxMemoryKiB = 4 * 1024 * 1024
	maxTimeCost  = 64
	minKeySize   = 16
	maxKeySize   = 64
	minSaltSize  = 16

	// costCeiling bounds parameters read from a stored hash or header to
	// this multiple of the configured ones.
	costCeiling = 4
)

// Params holds the Argon2id cost parameters.
type Params struct {
	MemoryKiB   uint32
	TimeCost    uint32
	Parallelism uint8
	KeySize     uint32
	SaltSize    uint32
}

// DefaultParams mirrors the settings shipped with the desktop client:
// 64 MiB, three passes, four lanes, 256-bit keys.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024,
		TimeCost:    3,
		Parallelism: 4,
		KeySize:     32,
		SaltSize:    16,
	}
}

// Validate rejects cost parameters outside safe bounds. Values are never
// clamped.
func (p Params) Validate() error {
	switch {
	case p.Parallelism == 0:
		return fmt.Errorf("kdf: parallelism must be positive: %w", shared.ErrConfiguration)
	case p.MemoryKiB < minMemoryKiB:
		return fmt.Errorf("kdf: memory cost %d KiB below minimum %d KiB: %w", p.MemoryKiB, minMemoryKiB, shared.ErrConfiguration)
	case p.MemoryKiB > maxMemoryKiB:
		return fmt.Errorf("kdf: memory cost %d KiB above maximum %d KiB: %w", p.MemoryKiB, maxMemoryKiB, shared.ErrConfiguration)
	case p.MemoryKiB < 8*uint32(p.Parallelism):
		return fmt.Errorf("kdf: memory cost must be at least 8 KiB per lane: %w", shared.ErrConfiguration)
	case p.TimeCost == 0 || p.TimeCost > maxTimeCost:
		return fmt.Errorf("kdf: time cost %d outside 1..%d: %w", p.TimeCost, maxTimeCost, shared.ErrConfiguration)
	case p.KeySize < minKeySize || p.KeySize > maxKeySize:
		return fmt.Errorf("kdf: key size %d outside %d..%d: %w", p.KeySize, minKeySize, maxKeySize, shared.ErrConfiguration)
	case p.SaltSize < minSaltSize:
		return fmt.Errorf("kdf: salt size %d below minimum %d: %w", p.SaltSize, minSaltSize, shared.ErrConfiguration)
	}
	return nil
}

// admits reports whether parameters embedded in a hash stay within
// costCeiling times p.
func (p Params) admits(enc encoded) bool {
	return uint64(enc.memory) <= uint64(p.MemoryKiB)*costCeiling &&
		uint64(enc.timeCost) <= uint64(p.TimeCost)*costCeiling &&
		uint64(enc.parallelism) <= uint64(p.Parallelism)*costCeiling
}

// CryptoConfig exposes the active parameters for auditing and display.
type CryptoConfig struct {
	MemCost     uint32 `json:"argon2_mem_cost"`
	TimeCost    uint32 `json:"argon2_time_cost"`
	Parallelism uint8  `json:"argon2_parallelism"`
	KeySize     uint32 `json:"master_key_size"`
	Algorithm   string `json:"algorithm"`
}
