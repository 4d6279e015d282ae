package wormtable

import (
	"github.com/tuannm99/wormtable/internal/index"
	"github.com/tuannm99/wormtable/internal/schema"
	"github.com/tuannm99/wormtable/internal/storage"
	"github.com/tuannm99/wormtable/internal/writer"
)

const (
	DefaultCacheSize     = 64 * storage.OneMB
	DefaultReadCacheSize = 32 * storage.OneMB
)

type IndexOptions struct {
	CacheSize        int64
	SortBufferSize   int64
	TempDir          string
	ProgressInterval uint64
}

// Options tune a table. Cache sizes only affect speed. Zero values take
// the defaults.
type Options struct {
	// CacheSize is the page cache used while building.
	CacheSize int64
	// ReadCacheSize is the page cache of an opened table.
	ReadCacheSize int64
	BufferSize    int
	MaxRows       int
	Limits        schema.Limits
	Index         IndexOptions
}

func DefaultOptions() Options {
	return Options{
		CacheSize:     DefaultCacheSize,
		ReadCacheSize: DefaultReadCacheSize,
		BufferSize:    writer.DefaultBufferSize,
		MaxRows:       writer.DefaultMaxRows,
		Limits:        schema.DefaultLimits(),
		Index: IndexOptions{
			CacheSize:        DefaultReadCacheSize,
			SortBufferSize:   index.DefaultSortBufferSize,
			ProgressInterval: index.DefaultProgressInterval,
		},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CacheSize <= 0 {
		o.CacheSize = d.CacheSize
	}
	if o.ReadCacheSize <= 0 {
		o.ReadCacheSize = d.ReadCacheSize
	}
	if o.BufferSize <= 0 {
		o.BufferSize = d.BufferSize
	}
	if o.MaxRows <= 0 {
		o.MaxRows = d.MaxRows
	}
	if o.Limits == (schema.Limits{}) {
		o.Limits = d.Limits
	}
	if o.Index.CacheSize <= 0 {
		o.Index.CacheSize = d.Index.CacheSize
	}
	if o.Index.SortBufferSize <= 0 {
		o.Index.SortBufferSize = d.Index.SortBufferSize
	}
	if o.Index.ProgressInterval == 0 {
		o.Index.ProgressInterval = d.Index.ProgressInterval
	}
	return o
}

func (o Options) writerConfig() writer.Config {
	return writer.Config{BufferSize: o.BufferSize, MaxRows: o.MaxRows}
}

func (o Options) indexOptions() index.Options {
	return index.Options{
		CacheSize:      o.Index.CacheSize,
		SortBufferSize: o.Index.SortBufferSize,
		TempDir:        o.Index.TempDir,
	}
}
