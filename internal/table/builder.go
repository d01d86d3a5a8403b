// Package table provides SST file writing and reading.
//
// SST File Layout:
//
//	[data block 1]
//	[data block 2]
//	...
//	[data block N]
//	[index block]
//	[Footer]  (fixed size, at end of file)
//
// Reference: LevelDB table/table_builder.cc, table/table_builder.h
package table

import (
	"errors"
	"fmt"
	"io"

	"github.com/aalhour/sstable/internal/block"
	"github.com/aalhour/sstable/internal/checksum"
	"github.com/aalhour/sstable/internal/compression"
	"github.com/aalhour/sstable/internal/encoding"
	"github.com/aalhour/sstable/internal/logging"
)

// ErrBuilderFinished is returned when Add or Finish is called on a builder
// that has already been finished or abandoned.
var ErrBuilderFinished = errors.New("table: builder already finished")

// compressionHasEmbeddedSize reports whether the given compression type's
// wire format already embeds the decompressed size, so no separate varint32
// size prefix is needed ahead of the compressed bytes. Snappy is the only
// one of the supported codecs with this property.
func compressionHasEmbeddedSize(t compression.Type) bool {
	return t == compression.SnappyCompression
}

// BuilderOptions controls how a TableBuilder partitions and compresses
// entries.
type BuilderOptions struct {
	// BlockSize is the target uncompressed size of a data block before it
	// is flushed. Default: 4096.
	BlockSize int

	// BlockRestartInterval is the number of entries between restart points
	// in a data block. Default: 16.
	BlockRestartInterval int

	// Comparator defines key ordering and supplies the separator-shortening
	// functions used when building index entries.
	Comparator Comparator

	// Compression selects the block compression codec. Default: NoCompression.
	Compression compression.Type

	// Logger receives diagnostic messages about block flushes and the final
	// Finish call. If nil, a WARN-level logger writing to stderr is used.
	Logger logging.Logger
}

// DefaultBuilderOptions returns the default builder configuration.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		BlockSize:            4096,
		BlockRestartInterval: 16,
		Comparator:           DefaultComparator{},
		Compression:          compression.NoCompression,
		Logger:               logging.OrDefault(nil),
	}
}

// TableBuilder incrementally assembles an SST file from sorted key-value
// pairs written to an io.Writer.
type TableBuilder struct {
	writer  io.Writer
	options BuilderOptions

	dataBlock  *block.Builder
	indexBlock *block.Builder

	pendingIndexEntry bool
	pendingHandle     block.Handle
	lastKey           []byte

	offset uint64

	numEntries    int
	numDataBlocks int

	finished bool
	err      error
}

// NewTableBuilder creates a TableBuilder that writes to w.
func NewTableBuilder(w io.Writer, opts BuilderOptions) *TableBuilder {
	if opts.BlockSize <= 0 {
		opts.BlockSize = 4096
	}
	if opts.BlockRestartInterval <= 0 {
		opts.BlockRestartInterval = 16
	}
	if opts.Comparator == nil {
		opts.Comparator = DefaultComparator{}
	}
	opts.Logger = logging.OrDefault(opts.Logger)

	return &TableBuilder{
		writer:  w,
		options: opts,
		// Restart interval 1 for the index block: index entries are looked
		// up one at a time via binary search over the block's own restart
		// array, so compressing them against each other buys nothing.
		dataBlock:  block.NewBuilder(opts.BlockRestartInterval),
		indexBlock: block.NewBuilder(1),
	}
}

// Add adds a key-value pair to the table.
// REQUIRES: key is strictly greater than any previously added key.
func (tb *TableBuilder) Add(key, value []byte) error {
	if tb.finished || tb.err != nil {
		return ErrBuilderFinished
	}

	if tb.pendingIndexEntry {
		// The data block that ended at the last flush now has a known
		// successor key. Shorten the separator between lastKey (the last
		// key of that block) and key (the first key of this one) so the
		// index entry can be as small as possible while still routing
		// Seek(key) to the right block.
		separator := tb.options.Comparator.FindShortestSeparator(tb.lastKey, key)
		tb.indexBlock.Add(separator, tb.pendingHandle.EncodeToSlice())
		tb.pendingIndexEntry = false
	}

	tb.dataBlock.Add(key, value)
	tb.numEntries++
	tb.lastKey = append(tb.lastKey[:0], key...)

	if tb.dataBlock.EstimatedSize() >= tb.options.BlockSize {
		tb.flushDataBlock()
	}

	return tb.err
}

// flushDataBlock writes the current data block and records its handle as
// pending for the next index entry.
func (tb *TableBuilder) flushDataBlock() {
	if tb.dataBlock.Empty() {
		return
	}

	blockContents := tb.dataBlock.Finish()
	handle, err := tb.writeBlockWithTrailer(blockContents, true)
	if err != nil {
		tb.options.Logger.Errorf(logging.NSBuild+"flush data block at offset %d: %v", tb.offset, err)
		tb.err = err
		return
	}

	tb.numDataBlocks++
	tb.pendingHandle = handle
	tb.pendingIndexEntry = true
	tb.dataBlock.Reset()

	tb.options.Logger.Debugf(logging.NSBuild+"flushed data block %d: offset=%d size=%d",
		tb.numDataBlocks-1, handle.Offset, handle.Size)
}

// writeBlockWithTrailer compresses (if requested and profitable), writes,
// and checksums a block, returning the handle describing the bytes written
// on disk (which cover only the possibly-compressed payload, not the
// trailer).
func (tb *TableBuilder) writeBlockWithTrailer(raw []byte, compressible bool) (block.Handle, error) {
	compressionType := compression.NoCompression
	payload := raw

	if compressible && tb.options.Compression != compression.NoCompression {
		compressed, err := compression.Compress(tb.options.Compression, raw)
		if err != nil {
			return block.Handle{}, fmt.Errorf("compress block: %w", err)
		}
		// Only keep the compressed form if it saves at least 12.5% over the
		// raw size; marginal savings aren't worth the decompression cost on
		// every future read.
		if compressed != nil && len(compressed) <= len(raw)-len(raw)/8 {
			payload = compressed
			compressionType = tb.options.Compression
			if !compressionHasEmbeddedSize(compressionType) {
				prefix := encoding.AppendVarint32(nil, uint32(len(raw)))
				payload = append(prefix, compressed...)
			}
		}
	}

	handle := block.Handle{Offset: tb.offset, Size: uint64(len(payload))}

	if _, err := tb.writer.Write(payload); err != nil {
		return block.Handle{}, err
	}

	trailer := make([]byte, block.BlockTrailerSize)
	trailer[0] = byte(compressionType)
	crc := checksum.ComputeCRC32CChecksumWithLastByte(payload, trailer[0])
	encoding.EncodeFixed32(trailer[1:], crc)

	if _, err := tb.writer.Write(trailer); err != nil {
		return block.Handle{}, err
	}

	tb.offset += uint64(len(payload) + len(trailer))
	return handle, nil
}

// Finish finalizes the table: it flushes any pending data block, writes the
// index block, and writes the footer.
func (tb *TableBuilder) Finish() error {
	if tb.finished {
		return ErrBuilderFinished
	}
	if tb.err != nil {
		return tb.err
	}

	tb.flushDataBlock()
	if tb.err != nil {
		return tb.err
	}

	if tb.pendingIndexEntry {
		// No further key will ever arrive for this table, so the successor
		// need only be short and >= lastKey, not bounded above by anything.
		successor := tb.options.Comparator.FindShortSuccessor(tb.lastKey)
		tb.indexBlock.Add(successor, tb.pendingHandle.EncodeToSlice())
		tb.pendingIndexEntry = false
	}

	indexContents := tb.indexBlock.Finish()
	indexHandle, err := tb.writeBlockWithTrailer(indexContents, false)
	if err != nil {
		return err
	}

	footer := &block.Footer{
		TableMagicNumber: block.LegacyBlockBasedTableMagicNumber,
		IndexHandle:      indexHandle,
	}
	encodedFooter := footer.EncodeTo()
	if _, err := tb.writer.Write(encodedFooter); err != nil {
		return err
	}
	tb.offset += uint64(len(encodedFooter))

	tb.finished = true
	tb.options.Logger.Infof(logging.NSBuild+"finished table: %d entries, %d data blocks, %d bytes",
		tb.numEntries, tb.numDataBlocks, tb.offset)
	return nil
}

// Abandon stops building without writing a footer. No further writes to w
// will be performed by this builder.
func (tb *TableBuilder) Abandon() {
	tb.finished = true
}

// NumEntries returns the number of key-value pairs added so far.
func (tb *TableBuilder) NumEntries() int {
	return tb.numEntries
}

// FileSize returns the number of bytes written to w so far, not including
// any data buffered in the current (unflushed) data block.
func (tb *TableBuilder) FileSize() uint64 {
	return tb.offset
}
