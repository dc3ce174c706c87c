// Package store implements C10: append-only persistence of signals and
// sessions with a single-writer queue and a query/export surface, over
// an embedded sqlite database with versioned migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"orderflow-engine/metrics"
	"orderflow-engine/model"
)

// Store owns the single database/sql.DB connection and the single-writer
// async queue every mutation goes through.
type Store struct {
	db *sql.DB

	backlog   chan writeOp
	dropped   int64
	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

type writeOp struct {
	kind    string // "signal_upsert" | "session_upsert"
	signal  *model.Signal
	session *model.Session
}

// Open connects to (creating if absent) a sqlite database at path, applies
// migrations, and starts the background writer goroutine. backlogSize is
// the bounded queue depth (default 10000).
func Open(path string, backlogSize int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	db.SetMaxOpenConns(1) // single embedded-file writer; avoids SQLITE_BUSY

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=1",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("store.Open: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, backlog: make(chan writeOp, backlogSize), done: make(chan struct{})}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store.Open: migrate: %w", err)
	}

	s.wg.Add(1)
	go s.writerLoop()

	return s, nil
}

// Close drains remaining writes (best-effort) and closes the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}
	version := s.currentVersion()

	if version < 1 {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				started_at TEXT NOT NULL,
				ended_at TEXT,
				mode TEXT NOT NULL,
				symbols TEXT NOT NULL,
				session_high TEXT NOT NULL DEFAULT '0',
				session_low TEXT NOT NULL DEFAULT '0',
				total_volume INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS signals (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				created_at TEXT NOT NULL,
				symbol TEXT NOT NULL,
				timestamp INTEGER NOT NULL,
				type TEXT NOT NULL,
				direction TEXT NOT NULL,
				price_at_emit TEXT NOT NULL,
				price_after_1m TEXT,
				price_after_5m TEXT,
				outcome TEXT NOT NULL DEFAULT 'pending'
			)`,
			`CREATE INDEX IF NOT EXISTS idx_signals_session ON signals(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_signals_type ON signals(type)`,
			`CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at)`,
			`CREATE TABLE IF NOT EXISTS price_samples (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				symbol TEXT NOT NULL,
				timestamp INTEGER NOT NULL,
				price TEXT NOT NULL
			)`,
		}
		for _, stmt := range stmts {
			if _, err := s.db.Exec(stmt); err != nil {
				return err
			}
		}
		if err := s.setVersion(1); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) currentVersion() int {
	var v int
	row := s.db.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`)
	if err := row.Scan(&v); err != nil {
		return 0
	}
	return v
}

func (s *Store) setVersion(v int) error {
	_, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, v)
	return err
}

// EnqueueSignal asynchronously persists sig (insert-or-update on ID). On
// backlog overflow the oldest pending write is dropped and a counter
// incremented; the pipeline never blocks.
func (s *Store) EnqueueSignal(sig model.Signal) {
	s.enqueue(writeOp{kind: "signal_upsert", signal: &sig})
}

// EnqueueSession asynchronously persists sess.
func (s *Store) EnqueueSession(sess model.Session) {
	s.enqueue(writeOp{kind: "session_upsert", session: &sess})
}

func (s *Store) enqueue(op writeOp) {
	select {
	case s.backlog <- op:
		return
	default:
	}
	select {
	case <-s.backlog:
		atomic.AddInt64(&s.dropped, 1)
		metrics.StoreWritesDropped.Inc()
	default:
	}
	select {
	case s.backlog <- op:
	default:
		atomic.AddInt64(&s.dropped, 1)
		metrics.StoreWritesDropped.Inc()
	}
}

// DroppedWrites reports how many writes have been dropped due to backlog
// overflow.
func (s *Store) DroppedWrites() int64 { return atomic.LoadInt64(&s.dropped) }

func (s *Store) writerLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.backlog:
			if err := s.apply(op); err != nil {
				log.Printf("⚠️ store: write failed, retrying once: %v", err)
				if err := s.apply(op); err != nil {
					log.Printf("⚠️ store: write permanently failed: %v", err)
				}
			}
		case <-s.done:
			// drain whatever is already queued, then exit.
			for {
				select {
				case op := <-s.backlog:
					_ = s.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) apply(op writeOp) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	switch op.kind {
	case "signal_upsert":
		return s.upsertSignal(ctx, *op.signal)
	case "session_upsert":
		return s.upsertSession(ctx, *op.session)
	default:
		return fmt.Errorf("unknown write op %q", op.kind)
	}
}

func (s *Store) upsertSignal(ctx context.Context, sig model.Signal) error {
	var p1, p5 sql.NullString
	if sig.PriceAfter1m != nil {
		p1 = sql.NullString{String: sig.PriceAfter1m.String(), Valid: true}
	}
	if sig.PriceAfter5m != nil {
		p5 = sql.NullString{String: sig.PriceAfter5m.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (id, session_id, created_at, symbol, timestamp, type, direction, price_at_emit, price_after_1m, price_after_5m, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			price_after_1m=excluded.price_after_1m,
			price_after_5m=excluded.price_after_5m,
			outcome=excluded.outcome
	`, sig.ID.String(), sig.SessionID.String(), sig.CreatedAt.Format(time.RFC3339Nano), sig.Symbol, sig.Timestamp,
		string(sig.Type), string(sig.Direction), sig.PriceAtEmit.String(), p1, p5, string(sig.Outcome))
	return err
}

func (s *Store) upsertSession(ctx context.Context, sess model.Session) error {
	var ended sql.NullString
	if sess.EndedAt != nil {
		ended = sql.NullString{String: sess.EndedAt.Format(time.RFC3339Nano), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, ended_at, mode, symbols, session_high, session_low, total_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ended_at=excluded.ended_at,
			session_high=excluded.session_high,
			session_low=excluded.session_low,
			total_volume=excluded.total_volume
	`, sess.ID.String(), sess.StartedAt.Format(time.RFC3339Nano), ended, string(sess.Mode), joinCSV(sess.Symbols),
		sess.SessionHigh.String(), sess.SessionLow.String(), sess.TotalVolume)
	return err
}

func joinCSV(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// Flush blocks until the backlog at the time of the call has been
// drained, for tests and graceful shutdown. It does not prevent new
// writes from being enqueued concurrently.
func (s *Store) Flush(ctx context.Context) error {
	for {
		if len(s.backlog) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}
