// Package enforcer implements the Attribute Enforcer, which applies the
// priority class and CPU affinity of a launch entry to a resolved process.
package enforcer
