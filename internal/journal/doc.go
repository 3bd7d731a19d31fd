// Package journal keeps a queryable record of one simulation run.
//
// Every scan, verdict and discard event is appended to an in-memory SQLite
// database named after the run ID. The database disappears with the process;
// it exists so the run command can print per-line summaries with SQL instead
// of hand-maintained counters. Writes happen on a background goroutine fed
// by a bounded queue, so publishing from inside a tick never blocks.
package journal
