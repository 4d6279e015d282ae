// Package writer assembles rows one column at a time and writes them to
// the primary store in batches.
package writer

import (
	"fmt"
	"log/slog"

	"github.com/tuannm99/wormtable/internal/codec"
	"github.com/tuannm99/wormtable/internal/primary"
	"github.com/tuannm99/wormtable/internal/row"
	"github.com/tuannm99/wormtable/internal/schema"
)

const (
	DefaultBufferSize = 1 << 20
	// DefaultMaxRows assumes rows of roughly 256 bytes.
	DefaultMaxRows = DefaultBufferSize / 256
)

var ErrBadConfig = fmt.Errorf("%w: bad write buffer config", schema.ErrInvalidValue)

// Store is the part of the primary store the writer needs.
type Store interface {
	NumRows() uint64
	WriteBatch(recs []primary.Record) error
}

var _ Store = (*primary.Store)(nil)

type Config struct {
	// BufferSize bounds the bytes of committed rows held in memory.
	BufferSize int
	// MaxRows bounds the number of committed rows held in memory.
	MaxRows int
}

func DefaultConfig() Config {
	return Config{BufferSize: DefaultBufferSize, MaxRows: DefaultMaxRows}
}

func (c Config) Validate(limits schema.Limits) error {
	if c.BufferSize < limits.MaxRowSize {
		return fmt.Errorf("%w: buffer size %d below max row size %d", ErrBadConfig, c.BufferSize, limits.MaxRowSize)
	}
	if c.MaxRows < 1 {
		return fmt.Errorf("%w: max rows %d", ErrBadConfig, c.MaxRows)
	}
	return nil
}

// Writer is the single writer of a table. It is not safe for concurrent
// use.
//
// Committed rows wait in memory until Flush, or until the buffer would
// overflow with one more maximal row. Rows still waiting when the store is
// closed are lost.
type Writer struct {
	store  Store
	schema *schema.Schema
	codec  *codec.Codec
	cfg    Config

	builder    *row.Builder
	batch      []primary.Record
	batchBytes int
	next       uint64
}

func New(store Store, s *schema.Schema, cd *codec.Codec, cfg Config) (*Writer, error) {
	if err := cfg.Validate(cd.Limits()); err != nil {
		return nil, err
	}
	return &Writer{
		store:   store,
		schema:  s,
		codec:   cd,
		cfg:     cfg,
		builder: row.NewBuilder(s, cd.Limits()),
		batch:   make([]primary.Record, 0, min(cfg.MaxRows, 1024)),
		next:    store.NumRows(),
	}, nil
}

// InsertElements sets column c of the current row from a Go value.
func (w *Writer) InsertElements(c *schema.Column, v any) error {
	enc, err := w.codec.EncodeNative(c, v)
	if err != nil {
		return err
	}
	return w.builder.Set(c, enc)
}

// InsertEncodedElements sets column c of the current row from its text
// form.
func (w *Writer) InsertEncodedElements(c *schema.Column, text []byte) error {
	enc, err := w.codec.EncodeText(c, text)
	if err != nil {
		return err
	}
	return w.builder.Set(c, enc)
}

// CommitRow queues the current row under the next row number and starts a
// new one.
func (w *Writer) CommitRow() error {
	if w.builder.State() == row.Committed {
		w.builder.Reset()
	}
	packed, err := w.builder.Pack()
	if err != nil {
		return err
	}
	w.batch = append(w.batch, primary.Record{ID: w.next, Data: packed})
	w.batchBytes += len(packed)
	w.next++

	if w.batchBytes+w.codec.Limits().MaxRowSize > w.cfg.BufferSize || len(w.batch) >= w.cfg.MaxRows {
		return w.Flush()
	}
	return nil
}

// Flush writes the queued rows to the store in row order.
func (w *Writer) Flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	if err := w.store.WriteBatch(w.batch); err != nil {
		return fmt.Errorf("writer: flush %d rows: %w", len(w.batch), err)
	}
	slog.Debug("writer.flush",
		"rows", len(w.batch),
		"bytes", w.batchBytes,
		"total", w.next,
	)
	clear(w.batch)
	w.batch = w.batch[:0]
	w.batchBytes = 0
	return nil
}

// NumRows counts committed rows, flushed or not.
func (w *Writer) NumRows() uint64 { return w.next }

// Pending is the number of committed rows not yet flushed.
func (w *Writer) Pending() int { return len(w.batch) }

// State reports the current row's progress.
func (w *Writer) State() row.State {
	st := w.builder.State()
	if st == row.Committed && len(w.batch) == 0 {
		return row.Flushed
	}
	return st
}
