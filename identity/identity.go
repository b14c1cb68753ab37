package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"hash/crc32"
	"strings"
	"time"
)

// ErrAnonymousSign is returned when a signature is requested from the
// anonymous identity.
var ErrAnonymousSign = errors.New("anonymous identity cannot sign")

// Identity is the credential an agent binding dispatches calls as.
//
// Implementations are immutable; the session manager swaps whole identities
// rather than mutating one in place.
type Identity interface {
	// Principal returns the caller principal in text form.
	Principal() string

	// Sign signs a transport payload with the identity's session key.
	Sign(message []byte) ([]byte, error)

	// Credential returns the serialized delegation credential, empty for
	// the anonymous identity.
	Credential() string

	// Anonymous reports whether this is the anonymous identity.
	Anonymous() bool
}

// Anonymous is the identity used before login and after logout.
type Anonymous struct{}

// AnonymousPrincipal is the text form of the anonymous principal
// (the single tag byte 0x04).
const AnonymousPrincipal = "2vxsx-fae"

// Principal implements [Identity].
func (Anonymous) Principal() string { return AnonymousPrincipal }

// Sign implements [Identity]. It always fails.
func (Anonymous) Sign([]byte) ([]byte, error) { return nil, ErrAnonymousSign }

// Credential implements [Identity].
func (Anonymous) Credential() string { return "" }

// Anonymous implements [Identity].
func (Anonymous) Anonymous() bool { return true }

// Delegated is an identity backed by a session key and a provider-issued
// delegation credential. It is valid until the credential expires.
type Delegated struct {
	key        *SessionKey
	delegation *Delegation
}

// NewDelegated pairs a session key with the delegation that authorizes it.
// The delegation must have been issued for the session key's public half.
func NewDelegated(key *SessionKey, d *Delegation) (*Delegated, error) {
	if key == nil || d == nil {
		return nil, errors.New("session key and delegation required")
	}
	if !key.Public().Equal(ed25519.PublicKey(d.SessionKey)) {
		return nil, errors.New("delegation does not cover session key")
	}
	return &Delegated{key: key, delegation: d}, nil
}

// Principal implements [Identity].
func (d *Delegated) Principal() string { return d.delegation.Principal }

// Sign implements [Identity].
func (d *Delegated) Sign(message []byte) ([]byte, error) {
	return d.key.Sign(message)
}

// Credential implements [Identity].
func (d *Delegated) Credential() string { return d.delegation.Raw }

// Anonymous implements [Identity].
func (d *Delegated) Anonymous() bool { return false }

// ExpiresAt returns the delegation expiry.
func (d *Delegated) ExpiresAt() time.Time { return d.delegation.ExpiresAt }

// Expired reports whether the delegation has expired at the given instant.
func (d *Delegated) Expired(now time.Time) bool {
	return !now.Before(d.delegation.ExpiresAt)
}

// PrincipalFromKey derives the text principal for an ed25519 public key:
// SHA-224 of the key material, a self-authenticating tag byte, then the
// dashed base32 rendering with a CRC-32 prefix.
func PrincipalFromKey(pub ed25519.PublicKey) string {
	sum := sha256.Sum224(pub)
	raw := append(sum[:], 0x02)
	return principalText(raw)
}

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func principalText(raw []byte) string {
	check := make([]byte, 4, 4+len(raw))
	crc := crc32.ChecksumIEEE(raw)
	check[0] = byte(crc >> 24)
	check[1] = byte(crc >> 16)
	check[2] = byte(crc >> 8)
	check[3] = byte(crc)
	encoded := strings.ToLower(principalEncoding.EncodeToString(append(check, raw...)))

	var b strings.Builder
	b.Grow(len(encoded) + len(encoded)/5)
	for i, r := range encoded {
		if i > 0 && i%5 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}
