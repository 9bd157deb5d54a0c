package executor

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aqasim81/migrate-gate/internal/ledger"
	"github.com/aqasim81/migrate-gate/internal/migration"
)

// fakeDB models the ledger table, its exclusive lock and transaction
// visibility. Records staged in a transaction become visible to others only
// on commit.
type fakeDB struct {
	mu        sync.Mutex
	lock      chan struct{}
	committed []string
	log       []string
	failSQL   map[string]error

	ensureErr error
	lockErr   error
	lastErr   error
	recordErr error
	beginErr  error
	commitErr error

	ensureCalls int
	lastCalls   int
	conns       []*fakeConn
}

func newFakeDB(committed ...string) *fakeDB {
	return &fakeDB{
		lock:      make(chan struct{}, 1),
		committed: committed,
		failSQL:   make(map[string]error),
	}
}

func (db *fakeDB) record(entry string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.log = append(db.log, entry)
}

func (db *fakeDB) commit(ids ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.committed = append(db.committed, ids...)
}

func (db *fakeDB) ledgerIDs() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	return append([]string(nil), db.committed...)
}

func (db *fakeDB) events() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	return append([]string(nil), db.log...)
}

func (db *fakeDB) lockHeld() bool {
	return len(db.lock) > 0
}

func (db *fakeDB) acquire(_ context.Context) (Conn, error) {
	c := &fakeConn{db: db}

	db.mu.Lock()
	db.conns = append(db.conns, c)
	db.mu.Unlock()

	return c, nil
}

func (db *fakeDB) allReleased() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, c := range db.conns {
		if !c.released {
			return false
		}
	}

	return true
}

// Ledger implementation.

func (db *fakeDB) EnsureTable(_ context.Context, _ ledger.DBTX) error {
	db.mu.Lock()
	db.ensureCalls++
	db.mu.Unlock()

	return db.ensureErr
}

func (db *fakeDB) Lock(ctx context.Context, q ledger.DBTX) error {
	if db.lockErr != nil {
		return db.lockErr
	}

	tx := q.(*fakeTx)

	select {
	case db.lock <- struct{}{}:
		tx.locked = true
		db.record("lock")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (db *fakeDB) LastApplied(_ context.Context, q ledger.DBTX) (*ledger.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.lastCalls++

	if db.lastErr != nil {
		return nil, db.lastErr
	}

	ids := append([]string(nil), db.committed...)
	if tx, ok := q.(*fakeTx); ok {
		ids = append(ids, tx.staged...)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	return &ledger.Record{ID: ids[len(ids)-1]}, nil
}

func (db *fakeDB) Record(_ context.Context, q ledger.DBTX, id string) error {
	if db.recordErr != nil {
		return db.recordErr
	}

	tx := q.(*fakeTx)
	tx.staged = append(tx.staged, id)
	db.record("record " + id)

	return nil
}

// fakeTx embeds pgx.Tx so only the methods the executor calls need bodies.
type fakeTx struct {
	pgx.Tx

	db     *fakeDB
	staged []string
	locked bool
	done   bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tx.db.record(sql)

	if err := tx.db.failSQL[sql]; err != nil {
		return pgconn.CommandTag{}, err
	}

	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) Commit(_ context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}

	if tx.db.commitErr != nil {
		tx.finish()
		tx.db.record("commit failed")

		return tx.db.commitErr
	}

	tx.db.commit(tx.staged...)
	tx.db.record("commit")
	tx.finish()

	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}

	tx.db.record("rollback")
	tx.finish()

	return nil
}

func (tx *fakeTx) finish() {
	tx.done = true
	tx.staged = nil

	if tx.locked {
		tx.locked = false
		<-tx.db.lock
	}
}

type fakeConn struct {
	ledger.DBTX

	db       *fakeDB
	released bool
	txOpts   []pgx.TxOptions
}

func (c *fakeConn) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	c.txOpts = append(c.txOpts, opts)

	if c.db.beginErr != nil {
		return nil, c.db.beginErr
	}

	return &fakeTx{db: c.db}, nil
}

func (c *fakeConn) Release() {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	c.released = true
}

type fakeSource struct {
	units []migration.Unit
	err   error
}

func newFakeSource(ids ...string) *fakeSource {
	units := make([]migration.Unit, 0, len(ids))
	for _, id := range ids {
		units = append(units, testUnit(id, "SELECT '"+id+"';"))
	}

	return &fakeSource{units: units}
}

func (s *fakeSource) List() ([]migration.Unit, error) {
	if s.err != nil {
		return nil, s.err
	}

	return append([]migration.Unit(nil), s.units...), nil
}

func (s *fakeSource) Latest() (*migration.Unit, error) {
	if s.err != nil {
		return nil, s.err
	}

	if len(s.units) == 0 {
		return nil, nil
	}

	u := s.units[len(s.units)-1]

	return &u, nil
}

func testUnit(id, sql string) migration.Unit {
	return migration.Unit{
		ID:       id,
		SQL:      sql,
		Checksum: migration.ComputeChecksum(sql),
		FilePath: "migrations/" + id + ".sql",
	}
}

func newTestExecutor(db *fakeDB, src Source, opts ...Option) *Executor {
	e := New(nil, src, db, opts...)
	e.acquire = db.acquire

	return e
}
