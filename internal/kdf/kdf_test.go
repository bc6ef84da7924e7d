package kdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famledger/famledger/internal/shared"
)

func testParams() Params {
	return Params{MemoryKiB: minMemoryKiB, TimeCost: 1, Parallelism: 1, KeySize: 32, SaltSize: 16}
}

func newTestDeriver(t *testing.T) *Deriver {
	t.Helper()
	d, err := New(testParams())
	require.NoError(t, err)
	return d
}

func TestDeriveAndVerify(t *testing.T) {
	d := newTestDeriver(t)
	derived, err := d.DerivePasswordKey("correct horse")
	require.NoError(t, err)
	assert.Len(t, derived.Key, 32)
	assert.Len(t, derived.Salt, 16)
	assert.True(t, strings.HasPrefix(derived.Hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, d.VerifyPasswordKey("correct horse", derived.Hash))
	assert.False(t, d.VerifyPasswordKey("correct horse!", derived.Hash))
	assert.False(t, d.VerifyPasswordKey("", derived.Hash))
}

func TestEmptyPasswordDerivesDeterministicallyFromSalt(t *testing.T) {
	d := newTestDeriver(t)
	derived, err := d.DerivePasswordKey("")
	require.NoError(t, err)
	assert.True(t, d.VerifyPasswordKey("", derived.Hash))

	again, err := d.Rederive("", derived.Header())
	require.NoError(t, err)
	assert.Equal(t, derived.Key, again)
}

func TestFreshSaltPerDerivation(t *testing.T) {
	d := newTestDeriver(t)
	a, err := d.DerivePasswordKey("pw")
	require.NoError(t, err)
	b, err := d.DerivePasswordKey("pw")
	require.NoError(t, err)
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Key, b.Key)
	assert.True(t, d.VerifyPasswordKey("pw", b.Hash))
}

func TestVerifyFailsClosedOnMalformedHash(t *testing.T) {
	d := newTestDeriver(t)
	derived, err := d.DerivePasswordKey("pw")
	require.NoError(t, err)

	bad := []string{
		"",
		"not-a-hash",
		derived.Header(),
		strings.Replace(derived.Hash, "argon2id", "argon2i", 1),
		strings.Replace(derived.Hash, "v=19", "v=16", 1),
		strings.Replace(derived.Hash, "m=8192", "m=0", 1),
		strings.Replace(derived.Hash, "m=8192", "m=99999999", 1),
		derived.Hash + "$extra",
		derived.Header() + "$!!!",
	}
	for _, h := range bad {
		assert.False(t, d.VerifyPasswordKey("pw", h), "hash %q", h)
	}
}

func TestRederiveMatchesDerivedKey(t *testing.T) {
	d := newTestDeriver(t)
	derived, err := d.DerivePasswordKey("s3cret")
	require.NoError(t, err)

	key, err := d.Rederive("s3cret", derived.Header())
	require.NoError(t, err)
	assert.Equal(t, derived.Key, key)

	fromHash, err := d.Rederive("s3cret", derived.Hash)
	require.NoError(t, err)
	assert.Equal(t, derived.Key, fromHash)

	other, err := d.Rederive("other", derived.Header())
	require.NoError(t, err)
	assert.NotEqual(t, derived.Key, other)

	_, err = d.Rederive("s3cret", "garbage")
	assert.ErrorIs(t, err, ErrMalformedHash)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestEmbeddedCostIsCapped(t *testing.T) {
	d := newTestDeriver(t)
	derived, err := d.DerivePasswordKey("pw")
	require.NoError(t, err)

	within := strings.Replace(derived.Header(), "m=8192,t=1,p=1", "m=32768,t=4,p=4", 1)
	_, err = d.Rederive("pw", within)
	require.NoError(t, err)

	for _, params := range []string{"m=4194304,t=1,p=1", "m=8192,t=64,p=1", "m=8192,t=1,p=5"} {
		header := strings.Replace(derived.Header(), "m=8192,t=1,p=1", params, 1)
		_, err := d.Rederive("pw", header)
		assert.ErrorIs(t, err, ErrCostTooHigh, params)
		assert.ErrorIs(t, err, shared.ErrInvalidInput, params)

		hash := strings.Replace(derived.Hash, "m=8192,t=1,p=1", params, 1)
		assert.False(t, d.VerifyPasswordKey("pw", hash), params)
	}
}

func TestRederiveKeepsEmbeddedKeySize(t *testing.T) {
	small, err := New(Params{MemoryKiB: minMemoryKiB, TimeCost: 1, Parallelism: 1, KeySize: 16, SaltSize: 16})
	require.NoError(t, err)
	derived, err := small.DerivePasswordKey("pw")
	require.NoError(t, err)
	require.Len(t, derived.Key, 16)

	d := newTestDeriver(t)
	key, err := d.Rederive("pw", derived.Hash)
	require.NoError(t, err)
	assert.Equal(t, derived.Key, key)

	fromHeader, err := d.Rederive("pw", derived.Header())
	require.NoError(t, err)
	assert.Len(t, fromHeader, 32)
}

func TestGenerateKey(t *testing.T) {
	d := newTestDeriver(t)
	a, err := d.GenerateKey()
	require.NoError(t, err)
	b, err := d.GenerateKey()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestCryptoConfigReflectsParams(t *testing.T) {
	d := newTestDeriver(t)
	cfg := d.CryptoConfig()
	assert.Equal(t, CryptoConfig{MemCost: 8192, TimeCost: 1, Parallelism: 1, KeySize: 32, Algorithm: "Argon2id"}, cfg)

	derived, err := d.DerivePasswordKey("pw")
	require.NoError(t, err)
	assert.Contains(t, derived.Hash, "m=8192,t=1,p=1")
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	mutate := map[string]func(*Params){
		"zero memory":      func(p *Params) { p.MemoryKiB = 0 },
		"zero time":        func(p *Params) { p.TimeCost = 0 },
		"zero parallelism": func(p *Params) { p.Parallelism = 0 },
		"tiny key":         func(p *Params) { p.KeySize = 8 },
		"huge key":         func(p *Params) { p.KeySize = 128 },
		"short salt":       func(p *Params) { p.SaltSize = 4 },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			fn(&p)
			err := p.Validate()
			assert.ErrorIs(t, err, shared.ErrConfiguration)
			_, err = New(p)
			assert.ErrorIs(t, err, shared.ErrConfiguration)
		})
	}
}
