package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const (
	segmentPrefix = "outbox-"
	segmentSuffix = ".log"
	filePerm      = 0644

	// maxEntrySize bounds one journaled sale. Larger lines fail the scan.
	maxEntrySize = 4 << 20
)

// ErrOutboxFull is returned when a write would exceed the disk budget.
var ErrOutboxFull = errors.New("outbox max total size exceeded")

// Outbox is a segmented append-only journal of sales recorded while the
// remote service was unreachable. Every state a sale passes through offline
// is appended, so a sale created and refunded offline has two entries.
// One Outbox per tenant directory.
type Outbox struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu      sync.Mutex
	tail    *os.File
	tailLen int64
}

var _ domain.OutboxRepository = (*Outbox)(nil)

// segment is one journal file on disk.
type segment struct {
	path string
	size int64
}

// NewOutbox opens the journal in dir, creating it if needed.
func NewOutbox(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Outbox, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outbox directory %s: %w", dir, err)
	}
	o := &Outbox{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "outbox", "dir", dir),
	}
	if err := o.reopenTail(); err != nil {
		return nil, err
	}
	return o, nil
}

// Write appends one state of a sale and syncs the segment before returning.
func (o *Outbox) Write(ctx context.Context, t domain.Transaction) error {
	line, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode sale %s for outbox: %w", t.ID, err)
	}
	line = append(line, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.tail == nil {
		if err := o.startSegment(); err != nil {
			return err
		}
	}

	segs, err := o.segments()
	if err != nil {
		return fmt.Errorf("could not verify outbox disk space: %w", err)
	}
	var used int64
	for _, s := range segs {
		used += s.size
	}
	if want := used + int64(len(line)); want > o.maxTotalSize {
		return fmt.Errorf("%w (%d > %d)", ErrOutboxFull, want, o.maxTotalSize)
	}

	n, err := o.tail.Write(line)
	o.tailLen += int64(n)
	if err != nil {
		return fmt.Errorf("failed to append sale %s to outbox: %w", t.ID, err)
	}
	if err := o.tail.Sync(); err != nil {
		return fmt.Errorf("failed to sync outbox segment: %w", err)
	}

	if o.tailLen >= o.maxSegmentSize {
		if err := o.startSegment(); err != nil {
			o.logger.Error("failed to start next outbox segment", "error", err)
		}
	}
	return nil
}

// Replay hands every journaled entry to handler in the order it was
// written, oldest segment first. A sale with several entries is handed over
// once per entry. The first handler error stops the replay.
func (o *Outbox) Replay(ctx context.Context, handler func(t domain.Transaction) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closeTail()
	segs, err := o.segments()
	if err != nil {
		return err
	}

	var entries []domain.Transaction
	for _, s := range segs {
		got, err := o.readEntries(ctx, s.path)
		if err != nil {
			return err
		}
		entries = append(entries, got...)
	}
	if len(entries) == 0 {
		o.logger.Debug("outbox is empty, nothing to replay")
		return nil
	}

	o.logger.Info("replaying outbox", "segments", len(segs), "entries", len(entries))
	for i, t := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(t); err != nil {
			o.logger.Error("outbox replay stopped", "transaction_id", t.ID, "entry", i, "error", err)
			return fmt.Errorf("replay handler failed on %s: %w", t.ID, err)
		}
	}
	o.logger.Info("outbox replay completed", "entries", len(entries))
	return nil
}

// readEntries decodes one segment. Lines that do not decode are skipped; a
// torn final line is the usual cause.
func (o *Outbox) readEntries(ctx context.Context, path string) ([]domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer f.Close()

	var out []domain.Transaction
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), maxEntrySize)
	for line := 1; sc.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var t domain.Transaction
		if err := json.Unmarshal(sc.Bytes(), &t); err != nil {
			o.logger.Warn("skipping undecodable outbox entry", "segment", filepath.Base(path), "line", line, "error", err)
			continue
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan segment %s: %w", path, err)
	}
	return out, nil
}

// Truncate removes all segments and starts a fresh one.
func (o *Outbox) Truncate(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closeTail()
	segs, err := o.segments()
	if err != nil {
		return err
	}
	for _, s := range segs {
		if err := os.Remove(s.path); err != nil {
			o.logger.Error("failed to remove outbox segment", "path", s.path, "error", err)
		}
	}
	o.logger.Info("outbox truncated", "segments", len(segs))
	return o.reopenTail()
}

// Close closes the segment being appended to.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tail == nil {
		return nil
	}
	err := o.tail.Close()
	o.tail = nil
	return err
}

func (o *Outbox) closeTail() {
	if o.tail == nil {
		return
	}
	if err := o.tail.Sync(); err != nil {
		o.logger.Warn("failed to sync outbox segment", "error", err)
	}
	if err := o.tail.Close(); err != nil {
		o.logger.Warn("failed to close outbox segment", "error", err)
	}
	o.tail = nil
}

// startSegment seals the current segment and opens a new, empty one.
// Names embed a nanosecond clock so lexical order is write order.
func (o *Outbox) startSegment() error {
	o.closeTail()
	name := fmt.Sprintf("%s%020d%s", segmentPrefix, time.Now().UnixNano(), segmentSuffix)
	path := filepath.Join(o.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create outbox segment %s: %w", path, err)
	}
	o.tail, o.tailLen = f, 0
	o.logger.Debug("started outbox segment", "path", path)
	return nil
}

// reopenTail continues appending to the newest segment, or starts one when
// there is none or the newest is already full.
func (o *Outbox) reopenTail() error {
	segs, err := o.segments()
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return o.startSegment()
	}
	last := segs[len(segs)-1]
	if last.size >= o.maxSegmentSize {
		return o.startSegment()
	}
	f, err := os.OpenFile(last.path, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to reopen outbox segment %s: %w", last.path, err)
	}
	o.tail, o.tailLen = f, last.size
	return nil
}

// segments lists the journal files oldest first.
func (o *Outbox) segments() ([]segment, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox directory: %w", err)
	}
	var segs []segment
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat outbox segment %s: %w", name, err)
		}
		segs = append(segs, segment{path: filepath.Join(o.dir, name), size: info.Size()})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].path < segs[j].path })
	return segs, nil
}
