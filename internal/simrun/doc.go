// Package simrun drives one simulation run: it builds a line controller per
// configured machine, ticks each on its own goroutine, applies the scripted
// control schedule, and collects the journal summary, verdict feeds and order
// progress once the last tick has run.
//
// Runs are fast by default: ticks execute back to back and event timestamps
// follow a simulated clock that advances one tick interval per tick. Realtime
// runs pace ticks with a wall-clock ticker at the configured tick rate.
//
// Only one run may hold the state-directory lock at a time; a second Run
// returns ErrRunInProgress.
package simrun
