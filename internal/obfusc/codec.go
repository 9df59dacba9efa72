// Package obfusc applies a reversible, keyed transform to sensitive client
// fields before they are persisted. It defends against casual inspection of
// the storage file only; it is an obfuscation layer, not a security
// control, and is deliberately never called encryption.
package obfusc

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strings"

	"golang.org/x/crypto/argon2"
)

// TagPrefix marks transformed values so Reveal can tell them apart from
// plain text written before the layer was enabled.
const TagPrefix = "obf1:"

// Codec is a pluggable reversible transform over individual field values.
// A real cipher can be substituted without touching callers.
type Codec interface {
	// Transform returns the tagged, obfuscated form of value.
	Transform(value string) string

	// Reveal undoes Transform. The second result is false when the value
	// carried no transform tag and was returned unchanged.
	Reveal(value string) (string, bool)
}

// KeystreamCodec XORs field bytes with a keystream expanded from a derived
// key. The same value always maps to the same output, which keeps the
// transform stateless and reversible without per-value metadata.
type KeystreamCodec struct {
	key []byte
}

// NewKeystreamCodec derives the transform key from the per-device secret
// and salt using argon2id.
func NewKeystreamCodec(secret, salt []byte) *KeystreamCodec {
	key := argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
	return &KeystreamCodec{key: key}
}

func (c *KeystreamCodec) keystream(n int) []byte {
	out := make([]byte, 0, n+sha256.Size)
	var counter [8]byte
	for i := uint64(0); len(out) < n; i++ {
		binary.BigEndian.PutUint64(counter[:], i)
		h := sha256.New()
		h.Write(c.key)
		h.Write(counter[:])
		out = h.Sum(out)
	}
	return out[:n]
}

func (c *KeystreamCodec) Transform(value string) string {
	if value == "" || strings.HasPrefix(value, TagPrefix) {
		return value
	}
	buf := []byte(value)
	ks := c.keystream(len(buf))
	for i := range buf {
		buf[i] ^= ks[i]
	}
	return TagPrefix + base64.RawStdEncoding.EncodeToString(buf)
}

func (c *KeystreamCodec) Reveal(value string) (string, bool) {
	if !strings.HasPrefix(value, TagPrefix) {
		return value, false
	}
	buf, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, TagPrefix))
	if err != nil {
		return value, false
	}
	ks := c.keystream(len(buf))
	for i := range buf {
		buf[i] ^= ks[i]
	}
	return string(buf), true
}
