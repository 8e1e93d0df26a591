// Package entities provides the core domain types of the bridge.
// These types serve a dual purpose: they are the values guest code works with
// and the JSON wire DTOs exchanged with the host across the arena boundary.
package entities
