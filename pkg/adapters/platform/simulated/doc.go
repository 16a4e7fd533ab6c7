// Package simulated provides an in-memory model of the Windows facilities the
// launch engine uses: a process table, client window titles, a URI handler,
// application activation and process attributes.
//
// It backs the tests and the LAUNCHORCH_SIMULATE mode, where launches run
// end to end without touching the OS.
package simulated
