package kdf

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcID = "argon2id"

var b64 = base64.RawStdEncoding

// encoded is a parsed PHC string. key is empty for salt headers.
type encoded struct {
	memory      uint32
	timeCost    uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func encodeHeader(p Params, salt []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s", phcID, argon2.Version, p.MemoryKiB, p.TimeCost, p.Parallelism, b64.EncodeToString(salt))
}

func encodeHash(p Params, salt, key []byte) string {
	return encodeHeader(p, salt) + "$" + b64.EncodeToString(key)
}

// parseEncoded reads either a full hash (withKey) or a salt header.
func parseEncoded(s string, withKey bool) (encoded, error) {
	parts := strings.Split(s, "$")
	want := 5
	if withKey {
		want = 6
	}
	if len(parts) != want || parts[0] != "" {
		return encoded{}, fmt.Errorf("kdf: expected %d fields", want-1)
	}
	if parts[1] != phcID {
		return encoded{}, fmt.Errorf("kdf: unsupported algorithm %q", parts[1])
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return encoded{}, fmt.Errorf("kdf: version: %w", err)
	}
	if version != argon2.Version {
		return encoded{}, fmt.Errorf("kdf: unsupported version %d", version)
	}
	var m, t, p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return encoded{}, fmt.Errorf("kdf: parameters: %w", err)
	}
	if p == 0 || p > 255 || t == 0 || t > maxTimeCost || m < 8*p || m > maxMemoryKiB {
		return encoded{}, fmt.Errorf("kdf: parameters out of bounds")
	}
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return encoded{}, fmt.Errorf("kdf: bad salt")
	}
	out := encoded{memory: m, timeCost: t, parallelism: uint8(p), salt: salt}
	if withKey {
		key, err := b64.DecodeString(parts[5])
		if err != nil || len(key) < minKeySize || len(key) > maxKeySize {
			return encoded{}, fmt.Errorf("kdf: bad key")
		}
		out.key = key
	}
	return out, nil
}
