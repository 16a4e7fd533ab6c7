// Package domain defines the core types of the launch orchestration engine.
//
// Types:
//   - LaunchEntry: a persisted launch configuration (read-only to the engine)
//   - ValidationSession: one external validation watch and its state machine
//   - ProcessHandle: the OS process resolved after activation
//   - LaunchResult: the terminal outcome of a single orchestration run
//   - StatusEvent: an observable event emitted during a run
//
// Errors are classified by ErrorKind; see errors.go.
package domain
