// Package haltest provides instrumented hal doubles built on the noop
// backend. Every call that matters for frame pacing is appended to a shared
// Journal so tests can assert ordering between fence waits, encoder resets,
// submissions and presents.
package haltest
