package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"checkweigher/internal/line"
	"checkweigher/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

const (
	defaultBufferSize = 1024
	batchSize         = 128
)

// Run describes one simulation run.
type Run struct {
	Seed      uint64
	StartedAt time.Time
	Machines  []string
}

// Options configures Open.
type Options struct {
	RunID      string // used as the database name; a new UUID when empty
	BufferSize int    // events queued before Publish starts dropping
	Logger     *slog.Logger
}

// Journal records checkpoint events of one run in an in-memory SQLite
// database. Publish never blocks the tick driver: events go through a bounded
// queue and are dropped, and counted, when the writer falls behind.
type Journal struct {
	db     *sql.DB
	name   string
	logger *slog.Logger

	mu      sync.RWMutex // guards queue against Publish after Flush
	queue   chan line.Event
	closed  bool
	done    chan struct{}
	flushed sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// Open creates a fresh in-memory journal and starts its writer.
func Open(ctx context.Context, opts Options) (*Journal, error) {
	name := strings.TrimSpace(opts.RunID)
	if name == "" {
		name = uuid.NewString()
	}
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}

	dsn := fmt.Sprintf("file:checkweigher-%s?mode=memory&cache=shared", name)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// The in-memory database lives as long as its single connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{
		db:     db,
		name:   name,
		logger: logging.NewComponentLogger(opts.Logger, "journal"),
		queue:  make(chan line.Event, size),
		done:   make(chan struct{}),
	}
	if err := j.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	go j.writeLoop()
	return j, nil
}

func (j *Journal) createSchema(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordRun stores the run header. Events reference it, so call it before
// any controller starts publishing.
func (j *Journal) RecordRun(ctx context.Context, run Run) error {
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, seed, started_at, machines) VALUES (?, ?, ?, ?)",
		j.name, int64(run.Seed), started.UTC().Format(time.RFC3339Nano), strings.Join(run.Machines, ","),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Name returns the run ID the journal records under.
func (j *Journal) Name() string { return j.name }

// Publish queues evt for the writer. It never blocks.
func (j *Journal) Publish(evt line.Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.queue <- evt:
	default:
		j.dropped.Add(1)
	}
}

// Flush stops accepting events and waits until every queued event is written.
// Queries stay available until Close.
func (j *Journal) Flush() {
	j.flushed.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.queue)
		j.mu.Unlock()
	})
	<-j.done
}

// Close flushes pending events and releases the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	j.Flush()
	return j.db.Close()
}

// Stats reports writer counters.
func (j *Journal) Stats() (written, dropped, failed uint64) {
	return j.written.Load(), j.dropped.Load(), j.failed.Load()
}

func (j *Journal) writeLoop() {
	defer close(j.done)
	batch := make([]line.Event, 0, batchSize)
	for evt := range j.queue {
		batch = append(batch, evt)
	drain:
		for len(batch) < batchSize {
			select {
			case next, ok := <-j.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		j.writeBatch(batch)
		batch = batch[:0]
	}
}

func (j *Journal) writeBatch(batch []line.Event) {
	if err := j.insert(context.Background(), batch); err != nil {
		j.failed.Add(uint64(len(batch)))
		logging.WarnWithContext(j.logger, "journal write failed", "journal_write_failed",
			logging.Int("events", len(batch)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run summary will undercount these events"),
			logging.String(logging.FieldErrorHint, "check that RecordRun ran before the line started"),
		)
		return
	}
	j.written.Add(uint64(len(batch)))
}

func (j *Journal) insert(ctx context.Context, batch []line.Event) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
		(run_id, ts, line, kind, item_id, profile, measured_weight, verdict, contaminant, reject_reason, exit_direction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, evt := range batch {
		var weight sql.NullFloat64
		if evt.MeasuredWeight != nil {
			weight = sql.NullFloat64{Float64: *evt.MeasuredWeight, Valid: true}
		}
		exit := evt.ExitDirection
		if exit == "" {
			exit = line.ExitNone
		}
		if _, err := stmt.ExecContext(ctx,
			j.name,
			evt.Timestamp.UTC().Format(time.RFC3339Nano),
			evt.Line,
			string(evt.Kind),
			evt.ItemID,
			evt.Profile,
			weight,
			string(evt.Verdict),
			string(evt.Contaminant),
			string(evt.RejectReason),
			string(exit),
		); err != nil {
			return fmt.Errorf("insert event %s/%d: %w", evt.Line, evt.ItemID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}
