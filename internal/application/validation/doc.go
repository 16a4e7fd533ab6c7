// Package validation implements the Validation Watcher.
//
// The watcher asks the game client to verify a title's files through its
// validate URI, then samples the client's window titles until the keywords
// that mark verification have been absent for the quiet period, or until the
// fallback ceiling expires.
package validation
