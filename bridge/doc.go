// Package bridge drives host invocations from guest code under one of three
// execution regimes, so that the guest sees the same result contract whether
// the host answers synchronously, suspends the guest while it works, or runs
// the whole program elsewhere.
//
// An Instance is the only state a guest program needs. It owns the arena
// adapter, the response staging guard of the cooperative regime, the
// delegation channel and the pre-placed payload slot. Nothing is global.
package bridge
