// Package main hosts the checkweigher CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, then hands off to the
// internal packages: simrun for simulation runs, config for scaffolding, and
// line for the spawn-interval calculator. Output is either rendered tables
// for a terminal or JSON for scripts.
package main
