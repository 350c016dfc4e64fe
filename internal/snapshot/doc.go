// Package snapshot defines the profile and relationship snapshots fetched each tick
// and the pure functions that compare them.
package snapshot
