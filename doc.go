// Package openmemory provides the authenticated request-bridging client for
// the OpenMemory service: a memory-management backend hosted on a
// canister-style execution network that exposes fast uncommitted query
// reads and consensus-committed update writes behind an identity-gated
// gateway.
//
// The package is the public surface. It exposes [Client], [Builder],
// [Config], sentinel errors, and value types. Identity mechanics live in
// the identity package, the agent binding and transport in the agent
// package, and the session lifecycle in the session package; none of their
// internals leak through this API.
//
// # Architecture
//
// Three layers, leaves first:
//
//   - session.Manager owns the delegated identity, the persisted
//     "was authenticated" flag, and the agent binding lifecycle.
//   - The request bridge ([Client] dispatch) translates one HTTP-shaped
//     envelope into exactly one backend call, selecting the call path from
//     the method and applying the authentication header policy.
//   - The typed facade ([Client] operation methods) validates inputs,
//     dispatches once, and normalizes heterogeneous backend response
//     shapes into one stable type per operation.
//
// # What this package must NOT do
//
//   - Retry, deduplicate, or coalesce calls; a failure is reported to the
//     caller exactly once.
//   - Cache authentication state across dispatches; the session manager is
//     queried immediately before every mutating call.
//   - Send a mutating call over the query path or a read over the update
//     path.
package openmemory
