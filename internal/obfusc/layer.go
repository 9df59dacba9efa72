package obfusc

import (
	"context"

	"github.com/dsall/regvault/internal/logging"
	"github.com/dsall/regvault/internal/models"
)

// Layer applies a Codec to the fixed sensitive field set of a client
// record: first name, last name, email, phone. A nil codec makes both
// directions a no-op, so callers never branch on whether the secret
// loaded.
type Layer struct {
	codec Codec
	log   logging.Logger
}

// NewLayer wraps codec. codec may be nil (layer disabled).
func NewLayer(codec Codec, log logging.Logger) *Layer {
	return &Layer{codec: codec, log: log}
}

// Enabled reports whether a codec is present.
func (l *Layer) Enabled() bool {
	return l != nil && l.codec != nil
}

// Transform returns a copy of c with sensitive fields obfuscated and the
// record tagged. A disabled layer returns c unchanged.
func (l *Layer) Transform(c models.Client) models.Client {
	if !l.Enabled() {
		return c
	}
	out := c.Clone()
	out.FirstName = l.codec.Transform(c.FirstName)
	out.LastName = l.codec.Transform(c.LastName)
	out.Email = l.codec.Transform(c.Email)
	out.Phone = l.codec.Transform(c.Phone)
	out.Obfuscated = true
	return out
}

// Reveal undoes Transform. When the secret is absent or the record carries
// no transform tag the input is returned as-is with a diagnostic log line.
func (l *Layer) Reveal(ctx context.Context, c models.Client) models.Client {
	if !l.Enabled() {
		return c
	}
	if !c.Obfuscated {
		return c
	}
	out := c.Clone()
	allRevealed := true
	for _, f := range []struct {
		src string
		dst *string
	}{
		{c.FirstName, &out.FirstName},
		{c.LastName, &out.LastName},
		{c.Email, &out.Email},
		{c.Phone, &out.Phone},
	} {
		v, ok := l.codec.Reveal(f.src)
		*f.dst = v
		if f.src != "" && !ok {
			allRevealed = false
		}
	}
	if !allRevealed && l.log != nil {
		l.log.Warn(ctx, "record tagged as obfuscated but some fields carried no tag", "id", c.ID)
	}
	out.Obfuscated = false
	return out
}
