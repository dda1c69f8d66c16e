package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// StateDigest hashes the tick, every non-empty chunk, the power set and all
// machines. Two worlds with equal digests build identically from here on.
func (w *World) StateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.tick.Load())

	for _, k := range w.blocks.Keys() {
		ch, _ := w.blocks.Chunk(k)
		digestWriteI64(h, &tmp, int64(k.CX))
		digestWriteI64(h, &tmp, int64(k.CY))
		digestWriteI64(h, &tmp, int64(k.CZ))
		d := ch.Digest()
		h.Write(d[:])
	}
	// Chunk digests cover palette ids only.
	for _, b := range w.blocks.palette {
		h.Write([]byte(b))
		h.Write([]byte{0})
	}

	powered := make([]geom.Vec3i, 0, len(w.powered))
	for p := range w.powered {
		powered = append(powered, p)
	}
	sort.Slice(powered, func(i, j int) bool { return powered[i].Less(powered[j]) })
	for _, p := range powered {
		digestWriteVec(h, &tmp, p)
	}

	for _, pos := range w.MachinePositions() {
		m := w.machines[pos]
		s := m.State
		digestWriteVec(h, &tmp, pos)
		digestWriteI64(h, &tmp, int64(s.Timer))
		digestWriteI64(h, &tmp, int64(s.ShapeIndex))
		digestWriteI64(h, &tmp, int64(s.Rotation))
		h.Write([]byte{boolByte(s.FlipX), boolByte(s.FlipY), boolByte(s.FlipZ), boolByte(s.RedstoneGated), byte(s.Particles)})
		digestWriteI64(h, &tmp, int64(m.Energy.Stored))
		for i := 0; i < inventory.Size; i++ {
			st := m.Inventory.Stack(i)
			if st.Empty() {
				continue
			}
			digestWriteI64(h, &tmp, int64(i))
			h.Write([]byte(st.Item))
			h.Write([]byte{0})
			digestWriteI64(h, &tmp, int64(st.Count))
			if st.Marker != nil {
				digestWriteVec(h, &tmp, *st.Marker)
			}
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, p geom.Vec3i) {
	digestWriteI64(h, tmp, int64(p.X))
	digestWriteI64(h, tmp, int64(p.Y))
	digestWriteI64(h, tmp, int64(p.Z))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
