// Package types defines the appointment entity, the collaborator interfaces
// the core depends on (key-value persistence and location), and the standard
// errors shared across the rendezvous packages.
package types
