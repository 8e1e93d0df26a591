// Package hostfuncs provides the host side of the bridge: a registry of named
// actions that guest calls dispatch into, and the response envelope every
// action result is wrapped in.
// It has no WebAssembly runtime dependency, so the same registry serves the
// wazero host and the in-process substrate.
package hostfuncs
