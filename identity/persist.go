package identity

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
)

// persistedIdentity is the durable form of a delegated identity: the raw
// credential plus the session private key it authorizes.
type persistedIdentity struct {
	Delegation string `json:"delegation"`
	SessionKey []byte `json:"session_key"`
}

// EncodeDelegated serializes a delegated identity for durable storage so a
// later process can resume the session without a new provider round trip.
// The record contains the session private key; store it with the same care
// as the key itself.
func EncodeDelegated(d *Delegated) ([]byte, error) {
	if d == nil || d.key == nil || d.delegation == nil {
		return nil, errors.New("no delegated identity to encode")
	}
	data, err := json.Marshal(persistedIdentity{
		Delegation: d.delegation.Raw,
		SessionKey: d.key.priv,
	})
	if err != nil {
		return nil, fmt.Errorf("encode identity: %w", err)
	}
	return data, nil
}

// DecodeDelegated reconstructs a delegated identity from its durable form.
// An expired credential fails with [ErrDelegationExpired]. The credential
// signature is not re-verified here; the backend checks it on every call.
func DecodeDelegated(data []byte) (*Delegated, error) {
	var p persistedIdentity
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	key, err := SessionKeyFrom(ed25519.PrivateKey(p.SessionKey))
	if err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	d, err := ParseDelegation(p.Delegation, nil)
	if err != nil {
		return nil, err
	}
	return NewDelegated(key, d)
}
