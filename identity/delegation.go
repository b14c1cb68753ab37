package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MaxCredentialLifetime caps how long any delegation may remain valid.
// Providers asking for more are clamped to this bound.
const MaxCredentialLifetime = 30 * 24 * time.Hour

// ErrDelegationExpired is returned when parsing a delegation whose expiry
// has passed.
var ErrDelegationExpired = errors.New("delegation expired")

// Delegation is the provider-issued credential that authorizes a session
// key to act as a principal until a bounded expiry. On the wire it is an
// EdDSA-signed JWT.
type Delegation struct {
	// Raw is the serialized credential exactly as issued.
	Raw string

	Principal  string
	SessionKey []byte
	Issuer     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

type delegationClaims struct {
	SessionKey []byte `json:"skey"`
	jwt.RegisteredClaims
}

// IssueDelegation signs a delegation for the given session public key,
// valid for ttl (clamped to [MaxCredentialLifetime]). The principal is
// derived from the issuer key, matching how the provider identifies the
// delegating user.
func IssueDelegation(issuerKey ed25519.PrivateKey, issuer string, sessionPub ed25519.PublicKey, ttl time.Duration) (*Delegation, error) {
	if len(issuerKey) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid issuer key")
	}
	if len(sessionPub) != ed25519.PublicKeySize {
		return nil, errors.New("invalid session public key")
	}
	if ttl <= 0 || ttl > MaxCredentialLifetime {
		ttl = MaxCredentialLifetime
	}

	now := time.Now()
	principal := PrincipalFromKey(issuerKey.Public().(ed25519.PublicKey))
	claims := delegationClaims{
		SessionKey: sessionPub,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	raw, err := token.SignedString(issuerKey)
	if err != nil {
		return nil, fmt.Errorf("sign delegation: %w", err)
	}

	return &Delegation{
		Raw:        raw,
		Principal:  principal,
		SessionKey: append([]byte(nil), sessionPub...),
		Issuer:     issuer,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// ParseDelegation decodes a serialized delegation. When verifyKey is
// non-nil the signature is checked against it; otherwise the credential is
// accepted as-is (the backend performs its own verification on every call).
func ParseDelegation(raw string, verifyKey ed25519.PublicKey) (*Delegation, error) {
	claims := &delegationClaims{}

	var err error
	if verifyKey != nil {
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
		_, err = parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return verifyKey, nil
		})
	} else {
		parser := jwt.NewParser()
		_, _, err = parser.ParseUnverified(raw, claims)
	}
	if err != nil {
		return nil, fmt.Errorf("parse delegation: %w", err)
	}

	if claims.Subject == "" || len(claims.SessionKey) != ed25519.PublicKeySize {
		return nil, errors.New("delegation missing principal or session key")
	}
	if claims.ExpiresAt == nil {
		return nil, errors.New("delegation missing expiry")
	}

	d := &Delegation{
		Raw:        raw,
		Principal:  claims.Subject,
		SessionKey: append([]byte(nil), claims.SessionKey...),
		Issuer:     claims.Issuer,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		d.IssuedAt = claims.IssuedAt.Time
	}
	if !time.Now().Before(d.ExpiresAt) {
		return nil, ErrDelegationExpired
	}
	return d, nil
}
