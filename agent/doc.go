// Package agent implements the client binding used to reach an OpenMemory
// canister: a host + canister target paired with the currently-active
// identity, dispatching HTTP-shaped request envelopes over one of the two
// backend call paths.
//
// The two paths are not interchangeable: Query is the fast, uncommitted
// read path; Update is the consensus-committed write path. Sending a
// mutating call over Query (or the reverse) is a correctness bug, so the
// distinction is part of the [Transport] contract rather than a flag.
//
// The binding's derived call target embeds the sender principal. Whenever
// the identity changes the owner must call [Agent.Rebind]; the swap and the
// target rebuild happen atomically so no call can observe a target built
// from a previous identity.
package agent
