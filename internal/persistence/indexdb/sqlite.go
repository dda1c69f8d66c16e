package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/tuning"
	"patternbuilder.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read model of the tick, audit and snapshot
// streams. Writes are queued and applied by a single writer goroutine.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropAuditTotal    uint64
	DropSnapshotTotal uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqFlush
)

const schemaVersion = "1"

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	Chunks   int
	Palette  int
	Powered  int
	Machines []snapshot.MachineV1
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Builders can place a block per machine per tick; keep headroom.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			requests INTEGER NOT NULL,
			builds INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS requests (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			op TEXT NOT NULL,
			code TEXT NOT NULL,
			req_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS builds (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			mx INTEGER NOT NULL,
			my INTEGER NOT NULL,
			mz INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			shape_index INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			block TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_builds_machine_tick ON builds(mx, my, mz, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block TEXT NOT NULL,
			to_block TEXT NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			palette INTEGER NOT NULL,
			powered INTEGER NOT NULL,
			machines INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_machines (
			tick INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			timer INTEGER NOT NULL,
			shape_index INTEGER NOT NULL,
			rotation INTEGER NOT NULL,
			energy INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, x, y, z)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// enqueue never blocks the tick loop. Rows that do not fit are counted and
// dropped; the JSONL segments stay authoritative.
func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s != nil {
		s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s != nil {
		s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		Chunks:   len(snap.Chunks),
		Palette:  len(snap.Palette),
		Powered:  len(snap.Powered),
		Machines: snap.Machines,
	}}, &s.dropSnapshot)
}

// Flush waits until every row queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalogs records the alias table and tuning the server runs with.
// It writes synchronously and should be called once at startup.
func (s *SQLiteIndex) UpsertCatalogs(table *aliases.Table, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	tuneJSON, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(tuneJSON)
	catalogs := map[string][2]string{
		"tuning": {hex.EncodeToString(sum[:]), string(tuneJSON)},
	}
	if table != nil {
		aliasJSON, err := json.Marshal(table)
		if err != nil {
			return err
		}
		catalogs["aliases"] = [2]string{table.Digest(), string(aliasJSON)}
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for name, c := range catalogs {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
			name, c[0], c[1], now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ChangeRow is one indexed block change.
type ChangeRow struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// History returns the most recent changes at pos, newest first.
func (s *SQLiteIndex) History(ctx context.Context, pos [3]int, limit int) ([]ChangeRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,actor,action,from_block,to_block,COALESCE(reason,'')
		FROM audits WHERE x=? AND z=? AND y=? ORDER BY tick DESC, seq DESC LIMIT ?`,
		pos[0], pos[2], pos[1], limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChangeRow
	for rows.Next() {
		var c ChangeRow
		var tick int64
		if err := rows.Scan(&tick, &c.Actor, &c.Action, &c.From, &c.To, &c.Reason); err != nil {
			return nil, err
		}
		c.Tick = uint64(tick)
		out = append(out, c)
	}
	return out, rows.Err()
}

// batch groups queued writes into one transaction until it grows past
// maxOps rows or maxAge elapses.
type batch struct {
	db     *sql.DB
	tx     *sql.Tx
	ops    int
	opened time.Time

	maxOps int
	maxAge time.Duration
}

func (b *batch) ensure(ctx context.Context) bool {
	if b.tx != nil {
		return true
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		time.Sleep(50 * time.Millisecond)
		return false
	}
	b.tx, b.ops, b.opened = tx, 0, time.Now()
	return true
}

// exec runs st inside the open transaction. A failed row abandons the
// whole batch.
func (b *batch) exec(st *sql.Stmt, args ...any) bool {
	if st == nil || b.tx == nil {
		return false
	}
	if _, err := b.tx.Stmt(st).Exec(args...); err != nil {
		_ = b.tx.Rollback()
		b.tx = nil
		return false
	}
	b.ops++
	return true
}

func (b *batch) due() bool {
	return b.tx != nil && (b.ops >= b.maxOps || time.Since(b.opened) >= b.maxAge)
}

func (b *batch) commit() {
	if b.tx == nil {
		return
	}
	_ = b.tx.Commit()
	b.tx = nil
}

type statements struct {
	tick, request, build, audit, snapshot, machine *sql.Stmt
}

func prepare(db *sql.DB) statements {
	p := func(q string) *sql.Stmt {
		st, _ := db.Prepare(q)
		return st
	}
	return statements{
		tick:     p(`INSERT OR REPLACE INTO ticks(tick,digest,requests,builds,raw_json) VALUES(?,?,?,?,?)`),
		request:  p(`INSERT OR REPLACE INTO requests(tick,seq,session_id,op,code,req_json) VALUES(?,?,?,?,?,?)`),
		build:    p(`INSERT OR REPLACE INTO builds(tick,seq,mx,my,mz,outcome,shape_index,x,y,z,block) VALUES(?,?,?,?,?,?,?,?,?,?,?)`),
		audit:    p(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,x,y,z,from_block,to_block,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`),
		snapshot: p(`INSERT OR REPLACE INTO snapshots(tick,path,chunks,palette,powered,machines) VALUES(?,?,?,?,?,?)`),
		machine:  p(`INSERT OR REPLACE INTO snapshot_machines(tick,x,y,z,timer,shape_index,rotation,energy,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`),
	}
}

func (st statements) close() {
	for _, s := range []*sql.Stmt{st.tick, st.request, st.build, st.audit, st.snapshot, st.machine} {
		if s != nil {
			_ = s.Close()
		}
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	st := prepare(s.db)
	defer st.close()

	b := &batch{db: s.db, maxOps: 2000, maxAge: 2 * time.Second}
	defer b.commit()

	// Audit rows for one tick arrive back to back; seq orders them.
	var auditTick uint64
	var auditSeq int

	for r := range s.ch {
		if r.kind == reqFlush {
			b.commit()
			close(r.done)
			continue
		}
		if !b.ensure(ctx) {
			continue
		}
		switch r.kind {
		case reqTick:
			writeTick(b, st, r.tick)
		case reqAudit:
			a := r.audit
			if a.Tick != auditTick {
				auditTick, auditSeq = a.Tick, 0
			}
			raw, _ := json.Marshal(a)
			b.exec(st.audit, int64(a.Tick), auditSeq, a.Actor, a.Action,
				a.Pos[0], a.Pos[1], a.Pos[2], a.From, a.To, a.Reason, string(raw))
			auditSeq++
		case reqSnapshot:
			writeSnapshot(b, st, r.snapshot)
		}
		if b.due() {
			b.commit()
		}
	}
}

func writeTick(b *batch, st statements, e world.TickLogEntry) {
	raw, _ := json.Marshal(e)
	if !b.exec(st.tick, int64(e.Tick), e.Digest, len(e.Requests), len(e.Builds), string(raw)) {
		return
	}
	for i, rq := range e.Requests {
		reqJSON, _ := json.Marshal(rq.Req)
		if !b.exec(st.request, int64(e.Tick), i, rq.SessionID, rq.Req.Op, rq.Code, string(reqJSON)) {
			return
		}
	}
	for i, bd := range e.Builds {
		if !b.exec(st.build, int64(e.Tick), i,
			bd.Machine[0], bd.Machine[1], bd.Machine[2],
			bd.Outcome, bd.Index,
			bd.Target[0], bd.Target[1], bd.Target[2],
			bd.Block,
		) {
			return
		}
	}
}

func writeSnapshot(b *batch, st statements, sn snapshotRow) {
	if !b.exec(st.snapshot, int64(sn.Tick), sn.Path, sn.Chunks, sn.Palette, sn.Powered, len(sn.Machines)) {
		return
	}
	for _, m := range sn.Machines {
		raw, _ := json.Marshal(m)
		if !b.exec(st.machine, int64(sn.Tick), m.Pos[0], m.Pos[1], m.Pos[2],
			m.Timer, m.ShapeIndex, m.Rotation, m.EnergyStored, string(raw)) {
			return
		}
	}
}
