// Package ports defines the interfaces the bridge consumes.
// The foreign-boundary primitives of the host contract are expressed here so
// the bridge core depends on abstractions; infrastructure adapters (wasip1
// imports, the in-process substrate, wazero guest memory) implement them.
package ports
