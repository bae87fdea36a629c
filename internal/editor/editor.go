// Package editor holds the local view of a table's cells: the confirmed
// (authoritative) values plus the user's unconfirmed edits layered on top.
//
// Edits are buffered and written in batches once the user has been quiet for
// the debounce window. One timer covers every cell, so a burst of edits across
// many cells produces a single write.
package editor

import (
	"context"
	"sort"
	"sync"
	"time"

	"online_tables_lite/internal/api"

	"github.com/rs/zerolog/log"
)

const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultFlushTimeout = 10 * time.Second
)

// Writer persists a batch of cells. *api.Client satisfies it.
type Writer interface {
	UpdateCells(ctx context.Context, slug, token string, req api.CellBatchUpdateRequest) (*api.CellBatchUpdateResponse, error)
}

// Timer is the subset of *time.Timer the editor needs.
type Timer interface {
	Stop() bool
}

type Options struct {
	Debounce     time.Duration
	FlushTimeout time.Duration
	// OnChange runs after every state change, outside the editor's lock.
	OnChange func()
	// OnFlushError receives the error and the cells that were rolled back.
	OnFlushError func(err error, cells []api.Cell)
	// AfterFunc schedules the debounce callback. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

type Key struct {
	Row, Col int
}

type pendingEdit struct {
	value string
	seq   uint64
}

type flushItem struct {
	key   Key
	value string
	seq   uint64
}

type Editor struct {
	writer Writer
	slug   string
	token  string
	opts   Options

	mu            sync.Mutex
	authoritative map[Key]string
	pending       map[Key]pendingEdit
	failed        map[Key]string
	seq           uint64
	timer         Timer
	timerGen      uint64
	flushing      bool
	closed        bool
	connected     bool
	flushErr      error
	transportErr  error

	// flushMu serializes flushes so at most one batch is in flight.
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func New(writer Writer, slug, token string, initial []api.Cell, opts Options) *Editor {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Editor{
		writer:        writer,
		slug:          slug,
		token:         token,
		opts:          opts,
		authoritative: make(map[Key]string),
		pending:       make(map[Key]pendingEdit),
		failed:        make(map[Key]string),
		ctx:           ctx,
		cancel:        cancel,
	}
	e.seedLocked(initial)
	return e
}

// Value returns the effective value: pending edit, then confirmed value, then "".
func (e *Editor) Value(row, col int) string {
	v, _ := e.Lookup(row, col)
	return v
}

// Lookup is Value plus whether the value is an unconfirmed local edit.
func (e *Editor) Lookup(row, col int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := Key{row, col}
	if p, ok := e.pending[k]; ok {
		return p.value, true
	}
	return e.authoritative[k], false
}

// Set records an optimistic edit and re-arms the shared debounce timer.
// Coordinates are not bounds-checked; the backend owns table dimensions.
func (e *Editor) Set(row, col int, value string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	k := Key{row, col}
	e.seq++
	e.pending[k] = pendingEdit{value: value, seq: e.seq}
	delete(e.failed, k)
	e.armLocked()
	e.mu.Unlock()

	log.Debug().Int("row", row).Int("col", col).Msg("Cell edit buffered")
	e.changed()
}

func (e *Editor) armLocked() {
	e.stopTimerLocked()
	gen := e.timerGen
	e.timer = e.opts.AfterFunc(e.opts.Debounce, func() { e.onDebounce(gen) })
}

// stopTimerLocked stops the debounce timer and invalidates a callback that
// already fired but has not yet taken the lock.
func (e *Editor) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
}

func (e *Editor) onDebounce(gen uint64) {
	e.mu.Lock()
	if e.closed || gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.mu.Unlock()

	if err := e.flush(); err != nil {
		log.Warn().Err(err).Str("slug", e.slug).Msg("Cell flush failed")
	}
}

// FlushNow cancels the debounce timer and writes every pending edit
// immediately, returning the write error if any.
func (e *Editor) FlushNow() error {
	e.mu.Lock()
	e.stopTimerLocked()
	e.mu.Unlock()
	return e.flush()
}

// Retry re-submits the edits rolled back by the last failed flush, skipping
// cells the user has edited since.
func (e *Editor) Retry() error {
	e.mu.Lock()
	for k, v := range e.failed {
		if _, ok := e.pending[k]; ok {
			continue
		}
		e.seq++
		e.pending[k] = pendingEdit{value: v, seq: e.seq}
	}
	e.failed = make(map[Key]string)
	e.mu.Unlock()
	e.changed()
	return e.FlushNow()
}

func (e *Editor) flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	if e.closed || len(e.pending) == 0 {
		e.mu.Unlock()
		return nil
	}
	batch := make([]flushItem, 0, len(e.pending))
	for k, p := range e.pending {
		batch = append(batch, flushItem{key: k, value: p.value, seq: p.seq})
	}
	e.flushing = true
	e.mu.Unlock()
	e.changed()

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].key.Row != batch[j].key.Row {
			return batch[i].key.Row < batch[j].key.Row
		}
		return batch[i].key.Col < batch[j].key.Col
	})
	cells := make([]api.Cell, len(batch))
	for i, item := range batch {
		cells[i] = api.NewCell(item.key.Row, item.key.Col, item.value)
	}

	ctx, cancel := context.WithTimeout(e.ctx, e.opts.FlushTimeout)
	start := time.Now()
	_, err := e.writer.UpdateCells(ctx, e.slug, e.token, api.CellBatchUpdateRequest{Cells: cells})
	cancel()

	e.mu.Lock()
	for _, item := range batch {
		superseded := e.pending[item.key].seq != item.seq
		if err == nil {
			e.applyLocked(item.key, item.value)
		} else if !superseded {
			e.failed[item.key] = item.value
		}
		if !superseded {
			delete(e.pending, item.key)
		}
	}
	e.flushing = false
	e.flushErr = err
	closed := e.closed
	e.mu.Unlock()
	e.changed()

	if err != nil {
		log.Debug().
			Err(err).
			Int("cells", len(cells)).
			Dur("elapsed", time.Since(start)).
			Msg("Rolled back failed cell batch")
		if e.opts.OnFlushError != nil && !closed {
			e.opts.OnFlushError(err, cells)
		}
		return err
	}

	log.Debug().
		Int("cells", len(cells)).
		Dur("elapsed", time.Since(start)).
		Msg("Flushed cell batch")
	return nil
}

// ApplyRemote merges cells confirmed by other collaborators into the
// authoritative layer. Pending edits are left untouched.
func (e *Editor) ApplyRemote(cells []api.Cell) {
	e.mu.Lock()
	for _, c := range cells {
		e.applyLocked(Key{c.Row, c.Col}, c.Text())
	}
	e.mu.Unlock()
	e.changed()
}

// Reseed replaces the authoritative layer wholesale, keeping pending edits.
func (e *Editor) Reseed(cells []api.Cell) {
	e.mu.Lock()
	e.authoritative = make(map[Key]string, len(cells))
	e.seedLocked(cells)
	e.mu.Unlock()
	e.changed()
}

func (e *Editor) seedLocked(cells []api.Cell) {
	for _, c := range cells {
		e.applyLocked(Key{c.Row, c.Col}, c.Text())
	}
}

func (e *Editor) applyLocked(k Key, value string) {
	if value == "" {
		delete(e.authoritative, k)
		return
	}
	e.authoritative[k] = value
}

// SetConnectionStatus records the realtime channel's state.
func (e *Editor) SetConnectionStatus(connected bool, err error) {
	e.mu.Lock()
	e.connected = connected
	if connected {
		e.transportErr = nil
	} else if err != nil {
		e.transportErr = err
	}
	e.mu.Unlock()
	e.changed()
}

func (e *Editor) IsFlushing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushing
}

func (e *Editor) HasPendingEdits() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending) > 0
}

func (e *Editor) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// LastError reports the most recent flush error, else the transport error.
func (e *Editor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flushErr != nil {
		return e.flushErr
	}
	return e.transportErr
}

// HasFailedEdits reports whether Retry has anything to re-submit.
func (e *Editor) HasFailedEdits() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.failed) > 0
}

// Cells returns every non-empty effective cell ordered by row then column.
func (e *Editor) Cells() []api.Cell {
	e.mu.Lock()
	merged := make(map[Key]string, len(e.authoritative)+len(e.pending))
	for k, v := range e.authoritative {
		merged[k] = v
	}
	for k, p := range e.pending {
		merged[k] = p.value
	}
	e.mu.Unlock()

	out := make([]api.Cell, 0, len(merged))
	for k, v := range merged {
		if v != "" {
			out = append(out, api.NewCell(k.Row, k.Col, v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// Authoritative returns the confirmed value for a cell, ignoring pending edits.
func (e *Editor) Authoritative(row, col int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.authoritative[Key{row, col}]
	return v, ok
}

// Close stops the debounce timer and aborts any in-flight flush. No flush is
// started after Close returns.
func (e *Editor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.stopTimerLocked()
	e.mu.Unlock()

	e.cancel()
	// wait for an in-flight flush to observe the cancellation
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
}

func (e *Editor) changed() {
	if e.opts.OnChange != nil {
		e.opts.OnChange()
	}
}
