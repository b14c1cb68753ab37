package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const issuerKeyPEMType = "PRIVATE KEY"

// LocalProvider self-issues delegations from an issuer key held on disk.
// It gives CLIs and non-interactive environments a stable principal without
// an identity-provider round trip. The key file is created on first use
// with owner-only permissions.
type LocalProvider struct {
	// Path is the issuer key location. Empty means
	// $HOME/.config/openmemory/identity.pem.
	Path string

	// Issuer is stamped into issued delegations. Defaults to "local".
	Issuer string
}

// Authorize implements [Provider]. It never declines; failures are always
// key-management errors.
func (p *LocalProvider) Authorize(_ context.Context, sessionPub ed25519.PublicKey, ttl time.Duration) (*Delegation, error) {
	key, err := p.loadOrCreateKey()
	if err != nil {
		return nil, err
	}
	issuer := p.Issuer
	if issuer == "" {
		issuer = "local"
	}
	return IssueDelegation(key, issuer, sessionPub, ttl)
}

// Principal returns the stable principal of the on-disk issuer key,
// creating the key if necessary.
func (p *LocalProvider) Principal() (string, error) {
	key, err := p.loadOrCreateKey()
	if err != nil {
		return "", err
	}
	return PrincipalFromKey(key.Public().(ed25519.PublicKey)), nil
}

func (p *LocalProvider) keyPath() (string, error) {
	if p.Path != "" {
		return p.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "openmemory", "identity.pem"), nil
}

func (p *LocalProvider) loadOrCreateKey() (ed25519.PrivateKey, error) {
	path, err := p.keyPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return parseIssuerKey(data)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read issuer key: %w", err)
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	encoded := pem.EncodeToMemory(&pem.Block{Type: issuerKeyPEMType, Bytes: der})

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return nil, fmt.Errorf("write issuer key: %w", err)
	}
	return key, nil
}

func parseIssuerKey(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != issuerKeyPEMType {
		return nil, errors.New("issuer key file is not a private key PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse issuer key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("issuer key is not ed25519")
	}
	return key, nil
}
