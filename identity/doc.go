// Package identity implements delegated identities for the OpenMemory client.
//
// An identity is what the agent binding dispatches calls as. The zero state
// is the anonymous identity. After a successful login the session manager
// holds a [Delegated] identity: a short-lived ed25519 session key authorized
// by an external identity provider through a signed [Delegation] credential
// (an EdDSA JWT carrying the principal, the session public key, and a
// bounded expiry).
//
// Providers:
//
//   - [HTTPProvider] round-trips to a remote identity provider.
//   - [LocalProvider] self-issues delegations from an on-disk issuer key,
//     for CLIs and non-interactive environments.
//
// Principals are derived from public keys and rendered in the canonical
// dashed base32 text form.
package identity
