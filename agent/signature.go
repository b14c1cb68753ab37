package agent

import "encoding/base64"

func encodeSignature(sig []byte) string {
	return base64.RawURLEncoding.EncodeToString(sig)
}

// DecodeSignature reverses the wire encoding of a call signature. Exposed
// for gateway fakes and verification tooling.
func DecodeSignature(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}
