// Package entry drives a guest program from its entry point.
//
// Serve materialises the inbound request, runs the business handler and
// signals its outcome to the host exactly once. Delegate hands the whole
// program to an unconstrained secondary runtime and returns what it produced.
package entry
