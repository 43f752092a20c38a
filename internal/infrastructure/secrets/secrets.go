// Package secrets decodes credential material stored alongside tenant
// integration settings.
//
// Two codecs exist: Base64Codec reads tokens stored by older deployments,
// which applied only base64 encoding, and SecretboxCodec, which seals tokens
// with NaCl secretbox under a deployment key.
package secrets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSecret is returned when stored material cannot be decoded
	ErrInvalidSecret = errors.New("secrets: invalid secret material")
	// ErrInvalidKey is returned when the codec key is unusable
	ErrInvalidKey = errors.New("secrets: invalid key")
	// ErrUnknownCodec is returned by NewCodec for an unsupported name
	ErrUnknownCodec = errors.New("secrets: unknown codec")
)

// Decoder turns stored credential material into the raw secret
type Decoder interface {
	Decode(stored string) (string, error)
}

// Encoder turns a raw secret into storable material
type Encoder interface {
	Encode(raw string) (string, error)
}

// Codec encodes and decodes credential material
type Codec interface {
	Decoder
	Encoder
}

// Codec names accepted by NewCodec
const (
	CodecBase64    = "base64"
	CodecSecretbox = "secretbox"
)

// NewCodec builds the codec configured for the deployment.
// key is a base64 encoded 32-byte key and is ignored by the base64 codec.
func NewCodec(name, key string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecBase64:
		return Base64Codec{}, nil
	case CodecSecretbox:
		return NewSecretboxCodecFromString(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Base64Codec stores secrets as standard base64. It offers no confidentiality.
type Base64Codec struct{}

// Decode implements Decoder
func (Base64Codec) Decode(stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(stored))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return string(raw), nil
}

// Encode implements Encoder
func (Base64Codec) Encode(raw string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(raw)), nil
}

var _ Codec = Base64Codec{}
