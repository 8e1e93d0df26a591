// Package native implements the foreign-boundary contract in-process.
//
// SlabArena stands in for guest linear memory and Substrate dispatches host
// calls straight into a host-side action registry. The unconstrained
// delegated executor runs programs on it, and tests use it as a faithful
// model of the boundary.
package native
