package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/protocol"
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/tuning"
	"patternbuilder.ai/internal/sim/world"
)

func TestSQLiteIndex_WritesStreams(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	require.NoError(t, err)

	require.NoError(t, idx.UpsertCatalogs(aliases.Defaults(), tuning.Defaults()))

	require.NoError(t, idx.WriteTick(world.TickLogEntry{
		Tick:   7,
		Digest: "abc",
		Requests: []world.RecordedReq{
			{SessionID: "S000001", Req: protocol.ReqMsg{Op: protocol.OpSetField, Field: "rotation", Value: 1}},
			{SessionID: "S000001", Req: protocol.ReqMsg{Op: protocol.OpCharge}, Code: protocol.ErrBadRequest},
		},
		Builds: []world.RecordedBuild{
			{Machine: [3]int{-5, 0, 0}, Outcome: "PLACED", Index: 0, Source: [3]int{0, 0, 0}, Target: [3]int{10, 0, 0}, Block: "minecraft:stone"},
		},
	}))
	for i := 0; i < 2; i++ {
		require.NoError(t, idx.WriteAudit(world.AuditEntry{
			Tick:   7,
			Actor:  "MACHINE@-5,0,0",
			Action: "SET_BLOCK",
			Pos:    [3]int{10 + i, 0, 0},
			To:     "minecraft:stone",
			Reason: "PATTERN_BUILD",
		}))
	}
	idx.RecordSnapshot("/data/snapshots/8.snap.zst", snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 8},
		Palette:  []string{"", "minecraft:stone"},
		Chunks:   []snapshot.ChunkV1{{}},
		Machines: []snapshot.MachineV1{{Pos: [3]int{-5, 0, 0}, Timer: 20, ShapeIndex: 1, EnergyStored: 90}},
	})
	require.NoError(t, idx.Close())

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	count := func(q string, args ...any) int {
		t.Helper()
		var n int
		require.NoError(t, db.QueryRow(q, args...).Scan(&n))
		return n
	}

	require.Equal(t, 2, count(`SELECT COUNT(*) FROM catalogs`))
	var digest string
	require.NoError(t, db.QueryRow(`SELECT digest FROM catalogs WHERE name='aliases'`).Scan(&digest))
	require.Equal(t, aliases.Defaults().Digest(), digest)

	require.Equal(t, 2, count(`SELECT requests FROM ticks WHERE tick=7`))
	require.Equal(t, 1, count(`SELECT COUNT(*) FROM requests WHERE code=?`, protocol.ErrBadRequest))
	require.Equal(t, 1, count(`SELECT COUNT(*) FROM builds WHERE mx=-5 AND x=10 AND block='minecraft:stone'`))

	// Audit seq restarts per tick and both rows survive.
	require.Equal(t, 2, count(`SELECT COUNT(*) FROM audits WHERE tick=7 AND to_block='minecraft:stone'`))
	require.Equal(t, 1, count(`SELECT MAX(seq) FROM audits WHERE tick=7`))

	require.Equal(t, 1, count(`SELECT machines FROM snapshots WHERE tick=8`))
	require.Equal(t, 90, count(`SELECT energy FROM snapshot_machines WHERE tick=8 AND x=-5`))
}

func TestSQLiteIndex_HistoryAfterFlush(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	require.NoError(t, err)
	defer idx.Close()

	pos := [3]int{3, 1, -2}
	changes := []world.AuditEntry{
		{Tick: 4, Actor: "SESSION@S000001", Action: "SET_BLOCK", Pos: pos, To: "minecraft:stone", Reason: "REQUEST"},
		{Tick: 9, Actor: "SESSION@S000001", Action: "SET_BLOCK", Pos: pos, From: "minecraft:stone", Reason: "REQUEST"},
		{Tick: 9, Actor: "MACHINE@0,0,0", Action: "SET_BLOCK", Pos: pos, To: "minecraft:redstone_wire", Reason: "PATTERN_BUILD"},
		{Tick: 9, Actor: "MACHINE@0,0,0", Action: "SET_BLOCK", Pos: [3]int{3, 1, -1}, To: "minecraft:stone", Reason: "PATTERN_BUILD"},
	}
	for _, c := range changes {
		require.NoError(t, idx.WriteAudit(c))
	}
	require.NoError(t, idx.Flush(context.Background()))

	got, err := idx.History(context.Background(), pos, 2)
	require.NoError(t, err)
	require.Equal(t, []ChangeRow{
		{Tick: 9, Actor: "MACHINE@0,0,0", Action: "SET_BLOCK", To: "minecraft:redstone_wire", Reason: "PATTERN_BUILD"},
		{Tick: 9, Actor: "SESSION@S000001", Action: "SET_BLOCK", From: "minecraft:stone", Reason: "REQUEST"},
	}, got)
}
