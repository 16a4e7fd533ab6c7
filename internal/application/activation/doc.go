// Package activation implements the Activation Gateway.
//
// The gateway walks an ordered list of strategies, bounding each attempt by a
// timeout, until one of them issues the process-start request. Strategies are
// supplied by the platform adapters:
//   - app-activation: the packaged application activation manager, which
//     reports the root process id
//   - shell-execute: the shell's AppsFolder and protocol handlers
package activation
