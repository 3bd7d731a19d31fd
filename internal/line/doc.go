// Package line models a single packaging line: items produced by a bagging
// machine, a contamination scanner and a checkweigher gate.
//
// The Controller owns the active item set, the Scheduler that decides when a
// new item is bagged, and the Pipeline that advances items along the belt and
// fires the scan and weigh checkpoints exactly once per item. The scanner only
// flags contaminated items; the weigh checkpoint issues the verdict, so event
// consumers always observe a flag before the matching rejection.
//
// Everything in a tick runs to completion on the caller's goroutine. The only
// long-running operation is SwapProfileSafely, which waits for the belt to
// drain on its own goroutine and serialises with Tick through the
// controller's mutex.
package line
