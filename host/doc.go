// Package host runs bridge guests on the wazero runtime.
//
// An Executor owns one wazero runtime with WASI and the "reglet_bridge" host
// module. Host actions are served by a hostfuncs.HandlerRegistry. LoadModule
// instantiates a guest and returns an Instance whose Run hands the guest one
// request and collects the completion it signals.
//
// A Delegator serves the run_delegated action for guests in the constrained
// role of the delegated regime. Programs are registered in a ProgramTable and
// run in-process in the unconstrained role.
package host
