package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/google/uuid"
)

// SessionKey is the ephemeral ed25519 key pair generated per login. The
// private half never leaves the process; the public half is sent to the
// identity provider for authorization.
type SessionKey struct {
	id   string
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewSessionKey generates a fresh session key.
func NewSessionKey() (*SessionKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &SessionKey{id: uuid.New().String(), pub: pub, priv: priv}, nil
}

// SessionKeyFrom wraps an existing private key, for identities loaded from
// disk.
func SessionKeyFrom(priv ed25519.PrivateKey) (*SessionKey, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key size")
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key")
	}
	return &SessionKey{id: uuid.New().String(), pub: pub, priv: priv}, nil
}

// ID returns the key's opaque identifier, used for audit correlation.
func (k *SessionKey) ID() string { return k.id }

// Public returns the public half.
func (k *SessionKey) Public() ed25519.PublicKey { return k.pub }

// Sign signs message with the private half.
func (k *SessionKey) Sign(message []byte) ([]byte, error) {
	if k == nil || len(k.priv) != ed25519.PrivateKeySize {
		return nil, errors.New("session key not initialized")
	}
	return ed25519.Sign(k.priv, message), nil
}
