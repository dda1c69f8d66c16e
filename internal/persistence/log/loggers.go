package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"patternbuilder.ai/internal/sim/world"
)

// DefaultSegmentTicks is how many ticks one log segment covers.
const DefaultSegmentTicks = 72000

// SegmentWriter appends JSON lines to zstd segments keyed by tick. Segment
// n holds ticks [n*span, (n+1)*span) and is named after its first tick, so
// a lexical sort of the directory is also a tick sort.
type SegmentWriter struct {
	dir    string
	prefix string
	span   uint64

	mu   sync.Mutex
	seg  uint64
	open bool
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func NewSegmentWriter(dir, prefix string, span uint64) *SegmentWriter {
	if span == 0 {
		span = DefaultSegmentTicks
	}
	return &SegmentWriter{dir: dir, prefix: prefix, span: span}
}

// Append writes v as one line of the segment that owns tick. Ticks may
// arrive out of order; a segment reopened for append gains a new zstd frame.
func (w *SegmentWriter) Append(tick uint64, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if seg := tick / w.span; !w.open || seg != w.seg {
		if err := w.switchLocked(seg); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(append(line, '\n')); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *SegmentWriter) switchLocked(seg uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(SegmentPath(w.dir, w.prefix, seg*w.span), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.buf = f, enc, bufio.NewWriterSize(enc, 64*1024)
	w.seg, w.open = seg, true
	return nil
}

func (w *SegmentWriter) closeLocked() error {
	if !w.open {
		return nil
	}
	flushErr := w.buf.Flush()
	encErr := w.enc.Close()
	fileErr := w.f.Close()
	w.f, w.enc, w.buf, w.open = nil, nil, nil, false
	for _, err := range []error{flushErr, encErr, fileErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// SegmentPath names the segment starting at firstTick.
func SegmentPath(dir, prefix string, firstTick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%012d.jsonl.zst", prefix, firstTick))
}

// TickLogger records one entry per tick under <world>/events.
type TickLogger struct{ w *SegmentWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewSegmentWriter(filepath.Join(worldDir, "events"), "events", DefaultSegmentTicks)}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error { return l.w.Append(e.Tick, e) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger records every block change under <world>/audit.
type AuditLogger struct{ w *SegmentWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewSegmentWriter(filepath.Join(worldDir, "audit"), "audit", DefaultSegmentTicks)}
}

func (l *AuditLogger) WriteAudit(e world.AuditEntry) error { return l.w.Append(e.Tick, e) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
