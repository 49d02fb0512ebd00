// Package state keeps per-user conversation state for multi-step input.
// A Manager stores the current step and scratch values; a Flow declares
// which steps exist and which transitions between them are legal.
package state
