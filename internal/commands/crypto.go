package commands

import (
	"github.com/famledger/famledger/internal/kdf"
)

// GenerateKey returns fresh random key material.
func (e *Engine) GenerateKey() ([]byte, error) {
	return track(e, CmdGenerateKey, e.deriver.GenerateKey)
}

// DerivePasswordKey derives a store key from password with a new salt.
func (e *Engine) DerivePasswordKey(password string) (kdf.DerivedKey, error) {
	return track(e, CmdDerivePasswordKey, func() (kdf.DerivedKey, error) {
		return e.deriver.DerivePasswordKey(password)
	})
}

// VerifyPasswordKey checks password against a stored hash. Malformed
// hashes report false.
func (e *Engine) VerifyPasswordKey(password, hash string) bool {
	ok, _ := track(e, CmdVerifyPasswordKey, func() (bool, error) {
		return e.deriver.VerifyPasswordKey(password, hash), nil
	})
	return ok
}

// GetCryptoConfig reports the active KDF parameters.
func (e *Engine) GetCryptoConfig() kdf.CryptoConfig {
	cfg, _ := track(e, CmdGetCryptoConfig, func() (kdf.CryptoConfig, error) {
		return e.deriver.CryptoConfig(), nil
	})
	return cfg
}
