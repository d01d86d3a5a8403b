package sstable

// options.go defines the public configuration surface for building and
// reading SST tables.

import (
	"io"

	"github.com/aalhour/sstable/internal/compression"
	"github.com/aalhour/sstable/internal/logging"
	"github.com/aalhour/sstable/internal/table"
)

// Logger is an alias for the logging.Logger interface, allowing callers to
// pass their own logger implementation.
type Logger = logging.Logger

// CompressionType is an alias for the block compression type.
type CompressionType = compression.Type

// Compression type constants.
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	ZlibCompression   = compression.ZlibCompression
	LZ4Compression    = compression.LZ4Compression
	LZ4HCCompression  = compression.LZ4HCCompression
	ZstdCompression   = compression.ZstdCompression
)

// BuilderOptions configures a TableBuilder.
type BuilderOptions struct {
	// BlockSize is the target uncompressed size of a data block before it
	// is flushed. Default: 4096.
	BlockSize int

	// BlockRestartInterval is the number of entries between restart points
	// in a data block. Default: 16.
	BlockRestartInterval int

	// Comparator defines key ordering. If nil, bytewise comparison is used.
	Comparator Comparator

	// Compression selects the block compression codec. Default: NoCompression.
	Compression CompressionType

	// Logger receives diagnostic messages. If nil, a WARN-level logger
	// writing to stderr is used.
	Logger Logger
}

// DefaultBuilderOptions returns the default builder configuration.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		BlockSize:            4096,
		BlockRestartInterval: 16,
		Comparator:           DefaultComparator(),
		Compression:          NoCompression,
		Logger:               logging.OrDefault(nil),
	}
}

func (o BuilderOptions) toInternal() table.BuilderOptions {
	cmp := o.Comparator
	if cmp == nil {
		cmp = DefaultComparator()
	}
	blockSize := o.BlockSize
	if blockSize <= 0 {
		blockSize = 4096
	}
	restartInterval := o.BlockRestartInterval
	if restartInterval <= 0 {
		restartInterval = 16
	}
	return table.BuilderOptions{
		BlockSize:            blockSize,
		BlockRestartInterval: restartInterval,
		Comparator:           cmp,
		Compression:          o.Compression,
		Logger:               logging.OrDefault(o.Logger),
	}
}

// NewTableBuilder creates a TableBuilder that writes a new SST table to w.
func NewTableBuilder(w io.Writer, opts BuilderOptions) *table.TableBuilder {
	return table.NewTableBuilder(w, opts.toInternal())
}

// ReaderOptions configures a table Reader.
type ReaderOptions struct {
	// VerifyChecksums enables checksum verification for every block read.
	VerifyChecksums bool

	// Comparator defines key ordering. If nil, bytewise comparison is used.
	Comparator Comparator

	// Logger receives diagnostic messages. If nil, a WARN-level logger
	// writing to stderr is used.
	Logger Logger
}

// DefaultReaderOptions returns the default reader configuration.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		VerifyChecksums: true,
		Comparator:      DefaultComparator(),
		Logger:          logging.OrDefault(nil),
	}
}

func (o ReaderOptions) toInternal() table.ReaderOptions {
	cmp := o.Comparator
	if cmp == nil {
		cmp = DefaultComparator()
	}
	return table.ReaderOptions{
		VerifyChecksums: o.VerifyChecksums,
		Comparator:      cmp,
		Logger:          logging.OrDefault(o.Logger),
	}
}

// ReadableFile is the random-access file abstraction a Reader operates on.
type ReadableFile = table.ReadableFile

// OpenTable opens an SST table for reading.
func OpenTable(file ReadableFile, opts ReaderOptions) (*table.Reader, error) {
	return table.Open(file, opts.toInternal())
}
