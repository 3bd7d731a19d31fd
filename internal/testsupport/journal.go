package testsupport

import (
	"context"
	"testing"

	"checkweigher/internal/journal"
)

// MustOpenJournal opens an in-memory journal with its run header recorded
// and registers cleanup.
func MustOpenJournal(t testing.TB, machines ...string) *journal.Journal {
	t.Helper()

	ctx := context.Background()
	j, err := journal.Open(ctx, journal.Options{})
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = j.Close()
	})
	if err := j.RecordRun(ctx, journal.Run{Seed: 42, Machines: machines}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	return j
}
