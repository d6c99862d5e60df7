package bytestring

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Base64 returns the standard base64 encoding of b.
func (b ByteString) Base64() string {
	return base64.StdEncoding.EncodeToString(b.Bytes())
}

// Base64URL returns the URL-safe base64 encoding of b, without padding.
func (b ByteString) Base64URL() string {
	return base64.RawURLEncoding.EncodeToString(b.Bytes())
}

// Hex returns the lowercase hex encoding of b.
func (b ByteString) Hex() string {
	return hex.EncodeToString(b.Bytes())
}

// FromBase64 decodes standard base64 text into a ByteString.
func FromBase64(s string) (ByteString, error) {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ByteString{}, errors.Wrap(err, "bytestring: decode base64")
	}

	return ByteString{segs: []segRange{{decoded}}, hc: &hashCache{}}, nil
}

// FromBase64URL decodes unpadded URL-safe base64 text into a ByteString.
func FromBase64URL(s string) (ByteString, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return ByteString{}, errors.Wrap(err, "bytestring: decode base64url")
	}

	return ByteString{segs: []segRange{{decoded}}, hc: &hashCache{}}, nil
}

// FromHex decodes hex text into a ByteString.
func FromHex(s string) (ByteString, error) {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return ByteString{}, errors.Wrap(err, "bytestring: decode hex")
	}

	return ByteString{segs: []segRange{{decoded}}, hc: &hashCache{}}, nil
}
