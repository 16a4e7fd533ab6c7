// Package resolver implements the Process Resolver, which finds the process
// that belongs to a launched entry by polling the OS process table.
package resolver
