package obfusc

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsall/regvault/internal/models"
)

func testCodec(t *testing.T) *KeystreamCodec {
	t.Helper()
	return NewKeystreamCodec([]byte("device-secret"), []byte("0123456789abcdef"))
}

func TestCodec_RoundTrip(t *testing.T) {
	c := testCodec(t)

	for _, v := range []string{"Amina", "a@x.com", "+221701234567", "ñoño 漢字", "x"} {
		obf := c.Transform(v)
		assert.True(t, strings.HasPrefix(obf, TagPrefix))
		assert.NotEqual(t, v, obf)

		back, ok := c.Reveal(obf)
		assert.True(t, ok)
		assert.Equal(t, v, back)
	}
}

func TestCodec_EmptyAndTaggedPassThrough(t *testing.T) {
	c := testCodec(t)

	assert.Equal(t, "", c.Transform(""))

	once := c.Transform("value")
	// double transform must not stack tags
	assert.Equal(t, once, c.Transform(once))
}

func TestCodec_RevealUntagged(t *testing.T) {
	c := testCodec(t)

	v, ok := c.Reveal("plain text")
	assert.False(t, ok)
	assert.Equal(t, "plain text", v)
}

func TestCodec_DifferentKeysDiffer(t *testing.T) {
	a := NewKeystreamCodec([]byte("secret-a"), []byte("0123456789abcdef"))
	b := NewKeystreamCodec([]byte("secret-b"), []byte("0123456789abcdef"))

	assert.NotEqual(t, a.Transform("Amina"), b.Transform("Amina"))
}

func TestLayer_TransformReveal(t *testing.T) {
	l := NewLayer(testCodec(t), nil)
	ctx := context.Background()

	orig := models.Client{
		ID:        "c1",
		FirstName: "Amina",
		LastName:  "Diop",
		Email:     "a@x.com",
		Phone:     "+221701234567",
		Category:  models.CategorySingle,
	}

	obf := l.Transform(orig)
	assert.True(t, obf.Obfuscated)
	assert.NotEqual(t, orig.Email, obf.Email)
	// non-sensitive fields untouched
	assert.Equal(t, orig.ID, obf.ID)
	assert.Equal(t, orig.Category, obf.Category)

	back := l.Reveal(ctx, obf)
	assert.False(t, back.Obfuscated)
	assert.Equal(t, orig.FirstName, back.FirstName)
	assert.Equal(t, orig.LastName, back.LastName)
	assert.Equal(t, orig.Email, back.Email)
	assert.Equal(t, orig.Phone, back.Phone)
}

func TestLayer_DisabledIsNoop(t *testing.T) {
	l := NewLayer(nil, nil)

	orig := models.Client{ID: "c1", FirstName: "Amina"}
	assert.Equal(t, orig, l.Transform(orig))
	assert.Equal(t, orig, l.Reveal(context.Background(), orig))
	assert.False(t, l.Enabled())
}

func TestLoadOrCreateSecret_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.secret")

	secret1, salt1, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Len(t, secret1, secretLen)
	assert.Len(t, salt1, saltLen)

	secret2, salt2, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Equal(t, secret1, secret2)
	assert.Equal(t, salt1, salt2)
}

func TestLoadOrCreateSecret_RoundTripAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.secret")

	secret, salt, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	a := NewKeystreamCodec(secret, salt)

	secret2, salt2, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	b := NewKeystreamCodec(secret2, salt2)

	obf := a.Transform("Amina")
	back, ok := b.Reveal(obf)
	assert.True(t, ok)
	assert.Equal(t, "Amina", back)
}
