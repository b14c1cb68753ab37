// Package session owns the delegated-identity lifecycle for the OpenMemory
// client: identity acquisition through a provider, the persisted
// "was authenticated" flag, and the agent binding rebuild that must
// accompany every identity change.
//
// The [Manager] is an explicit instance with single-writer semantics: only
// its login/logout/restore paths mutate the identity or the binding, under
// one mutex, so no call ever observes a binding built from one identity
// paired with a flag reflecting another.
//
// Session state persists in a [StateStore]: the flag under the fixed key
// "ii_authenticated" and the credential record (delegation plus session
// key) beside it. The flag is a cache, never the source of truth:
// [Manager.IsAuthenticated] is ground truth and resynchronizes the flag on
// every check. The credential record is what lets a new process resume the
// session, reloaded by [Manager.Initialize] and confirmed by
// [Manager.Restore].
package session
