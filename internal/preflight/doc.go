// Package preflight checks the environment a simulation run needs before the
// first tick: writable log and state directories, and a free run lock.
//
// The run command calls RunAll after creating directories and refuses to
// start when a check fails.
package preflight
