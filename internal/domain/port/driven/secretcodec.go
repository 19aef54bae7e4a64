package driven

import "errors"

// ErrMalformedSecret is returned by SecretCodec.Decode when the input was not
// produced by the codec (bad framing, bad base64, failed authentication).
var ErrMalformedSecret = errors.New("malformed stored secret")

// SecretCodec defines the driven port for the reversible transform applied to
// secrets at rest. Decode(Encode(x)) must equal x for every x.
type SecretCodec interface {
	// Name identifies the codec in logs and configuration.
	Name() string
	Encode(plaintext string) (string, error)
	Decode(stored string) (string, error)
}
