// Package table provides SST file reading and writing functionality.
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
// Reference: LevelDB table/table.cc, table/format.cc
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

var (
	// ErrInvalidSST indicates the file is not a valid SST file.
	ErrInvalidSST = errors.New("table: invalid SST file")

	// ErrChecksumMismatch indicates a block checksum verification failed.
	ErrChecksumMismatch = errors.New("table: checksum mismatch")

	// ErrBlockNotFound indicates a requested block was not found.
	ErrBlockNotFound = errors.New("table: block not found")
)

// ReadableFile is the random-access file abstraction a Reader operates on.
type ReadableFile interface {
	io.Closer

	// ReadAt reads len(p) bytes from the file starting at offset.
	ReadAt(p []byte, off int64) (n int, err error)

	// Size returns the total size of the file.
	Size() int64
}

// ReaderOptions controls the behavior of the table reader.
type ReaderOptions struct {
	// VerifyChecksums enables checksum verification for every block read.
	VerifyChecksums bool

	// Comparator defines key ordering. Used when seeking within the index
	// and data blocks. Defaults to bytewise comparison.
	Comparator Comparator

	// Logger receives diagnostic messages about opening the table and block
	// reads. If nil, a WARN-level logger writing to stderr is used.
	Logger logging.Logger
}

// DefaultReaderOptions returns the default reader configuration: checksum
// verification on and bytewise key ordering.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		VerifyChecksums: true,
		Comparator:      DefaultComparator{},
		Logger:          logging.OrDefault(nil),
	}
}

// Reader reads an SST file in the block-based table format.
type Reader struct {
	file    ReadableFile
	size    int64
	options ReaderOptions

	footer *block.Footer

	indexBlock *block.Block
}

// maxBlockSize is the maximum size we'll allocate for a single block. This
// prevents memory exhaustion from corrupted block handles.
const maxBlockSize = 256 * 1024 * 1024

// Open opens an SST file for reading.
func Open(file ReadableFile, opts ReaderOptions) (*Reader, error) {
	if opts.Comparator == nil {
		opts.Comparator = DefaultComparator{}
	}
	opts.Logger = logging.OrDefault(opts.Logger)

	size := file.Size()
	if size < int64(block.EncodedLength) {
		return nil, ErrInvalidSST
	}

	r := &Reader{
		file:    file,
		size:    size,
		options: opts,
	}

	if err := r.readFooter(); err != nil {
		opts.Logger.Errorf(logging.NSRead+"read footer: %v", err)
		return nil, err
	}

	indexBlock, err := r.readBlock(r.footer.IndexHandle)
	if err != nil {
		opts.Logger.Errorf(logging.NSRead+"read index block: %v", err)
		return nil, fmt.Errorf("read index block: %w", err)
	}
	r.indexBlock = indexBlock

	opts.Logger.Debugf(logging.NSRead+"opened table: size=%d index_offset=%d index_size=%d",
		size, r.footer.IndexHandle.Offset, r.footer.IndexHandle.Size)

	return r, nil
}

// readFooter reads and parses the footer from the end of the file.
func (r *Reader) readFooter() error {
	buf := make([]byte, block.EncodedLength)
	offset := r.size - int64(block.EncodedLength)
	if _, err := r.file.ReadAt(buf, offset); err != nil {
		return err
	}

	footer, err := block.DecodeFooter(buf)
	if err != nil {
		return err
	}

	r.footer = footer
	return nil
}

// readBlock reads, checksum-verifies, and decompresses a block.
func (r *Reader) readBlock(handle block.Handle) (*block.Block, error) {
	trailerSize := block.BlockTrailerSize

	const maxInt64AsUint64 = ^uint64(0) >> 1
	if handle.Offset > maxInt64AsUint64 {
		return nil, fmt.Errorf("block offset %d exceeds maximum %d: %w", handle.Offset, maxInt64AsUint64, ErrInvalidSST)
	}
	if handle.Size > maxBlockSize {
		return nil, fmt.Errorf("block size %d exceeds maximum %d: %w", handle.Size, maxBlockSize, ErrInvalidSST)
	}

	totalSize := int(handle.Size) + trailerSize
	end := handle.Offset + uint64(totalSize)
	if end < handle.Offset || end > uint64(r.size) {
		return nil, fmt.Errorf("block at offset %d size %d exceeds file size %d: %w",
			handle.Offset, totalSize, r.size, ErrInvalidSST)
	}

	buf := make([]byte, totalSize)
	n, err := r.file.ReadAt(buf, int64(handle.Offset))
	if err != nil {
		return nil, err
	}
	if n < totalSize {
		return nil, ErrInvalidSST
	}

	blockData := buf[:handle.Size]
	compressionType := compression.Type(buf[len(buf)-trailerSize])
	storedChecksum := encoding.DecodeFixed32(buf[len(buf)-4:])

	if r.options.VerifyChecksums {
		computed := checksum.ComputeCRC32CChecksumWithLastByte(blockData, byte(compressionType))
		if computed != storedChecksum {
			r.options.Logger.Warnf(logging.NSRead+"checksum mismatch at offset %d: stored=%x computed=%x",
				handle.Offset, storedChecksum, computed)
			return nil, ErrChecksumMismatch
		}
	}

	if compressionType != compression.NoCompression {
		compressedData := blockData
		expectedSize := 0
		if compressionType != compression.SnappyCompression {
			size, prefixLen, err := encoding.DecodeVarint32(compressedData)
			if err != nil {
				return nil, fmt.Errorf("decode compressed block size prefix: %w", err)
			}
			expectedSize = int(size)
			compressedData = compressedData[prefixLen:]
		}

		decompressed, err := compression.DecompressWithSize(compressionType, compressedData, expectedSize)
		if err != nil {
			return nil, fmt.Errorf("decompress block: %w", err)
		}
		blockData = decompressed
	}

	return block.NewBlock(blockData)
}

// Footer returns the parsed footer.
func (r *Reader) Footer() *block.Footer {
	return r.footer
}

// DataBlockHandles returns the data block handles recorded in the index
// block, in file order. Callers that need the table's real block layout
// (rather than an entry-count estimate) should walk this slice instead of
// guessing block boundaries from NewIterator.
func (r *Reader) DataBlockHandles() ([]block.Handle, error) {
	it := r.indexBlock.NewIteratorWithComparer(comparerAdapter{r.options.Comparator})
	var handles []block.Handle
	for it.SeekToFirst(); it.Valid(); it.Next() {
		handle, _, err := block.DecodeHandle(it.Value())
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}
	return handles, it.Error()
}

// ReadDataBlock reads, checksum-verifies, and decompresses the data block at
// handle, as recorded by DataBlockHandles.
func (r *Reader) ReadDataBlock(handle block.Handle) (*block.Block, error) {
	return r.readBlock(handle)
}

// Close releases resources associated with the reader.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Get looks up key and returns its value if present.
func (r *Reader) Get(key []byte) (value []byte, found bool, err error) {
	it := r.NewIterator()
	it.Seek(key)
	if !it.Valid() {
		return nil, false, it.Error()
	}
	if r.options.Comparator.Compare(it.Key(), key) != 0 {
		return nil, false, it.Error()
	}
	// Value is only valid until the iterator moves; copy it out.
	v := append([]byte(nil), it.Value()...)
	return v, true, it.Error()
}

// NewIterator returns an iterator over the table contents.
// The iterator is initially invalid; call SeekToFirst, SeekToLast, or Seek
// before use.
func (r *Reader) NewIterator() *TableIterator {
	return &TableIterator{
		reader:    r,
		indexIter: r.indexBlock.NewIteratorWithComparer(comparerAdapter{r.options.Comparator}),
	}
}

// comparerAdapter adapts a Comparator to the block.Comparer interface used
// by block.Iterator.Seek.
type comparerAdapter struct {
	cmp Comparator
}

func (a comparerAdapter) Compare(x, y []byte) int {
	return a.cmp.Compare(x, y)
}

// TableIterator iterates over key-value pairs in an SST file.
type TableIterator struct {
	reader    *Reader
	indexIter *block.Iterator
	dataBlock *block.Block
	dataIter  *block.Iterator
	err       error
}

// Valid returns true if the iterator is positioned at a valid entry.
func (it *TableIterator) Valid() bool {
	return it.err == nil && it.dataIter != nil && it.dataIter.Valid()
}

// SeekToFirst positions the iterator at the first entry.
func (it *TableIterator) SeekToFirst() {
	it.indexIter.SeekToFirst()
	it.loadDataBlock()
	if it.dataIter != nil {
		it.dataIter.SeekToFirst()
	}
}

// SeekToLast positions the iterator at the last entry.
func (it *TableIterator) SeekToLast() {
	it.indexIter.SeekToLast()
	it.loadDataBlock()
	if it.dataIter != nil {
		it.dataIter.SeekToLast()
	}
}

// Seek positions the iterator at the first entry with key >= target.
func (it *TableIterator) Seek(target []byte) {
	it.indexIter.Seek(target)
	if !it.indexIter.Valid() {
		it.loadDataBlock()
		return
	}
	it.loadDataBlock()
	if it.dataIter != nil {
		it.dataIter.Seek(target)
		if !it.dataIter.Valid() {
			// target falls after every key in this block; the next block
			// (if any) picks up from its own first key.
			it.indexIter.Next()
			it.loadDataBlock()
			if it.dataIter != nil {
				it.dataIter.SeekToFirst()
			}
		}
	}
}

// Next moves to the next entry.
func (it *TableIterator) Next() {
	if it.dataIter == nil {
		return
	}
	it.dataIter.Next()
	if !it.dataIter.Valid() {
		it.indexIter.Next()
		it.loadDataBlock()
		if it.dataIter != nil {
			it.dataIter.SeekToFirst()
		}
	}
}

// Prev moves to the previous entry.
func (it *TableIterator) Prev() {
	if it.dataIter == nil {
		return
	}
	it.dataIter.Prev()
	if !it.dataIter.Valid() {
		it.indexIter.Prev()
		it.loadDataBlock()
		if it.dataIter != nil {
			it.dataIter.SeekToLast()
		}
	}
}

// Key returns the current key.
func (it *TableIterator) Key() []byte {
	if it.dataIter == nil {
		return nil
	}
	return it.dataIter.Key()
}

// Value returns the current value.
func (it *TableIterator) Value() []byte {
	if it.dataIter == nil {
		return nil
	}
	return it.dataIter.Value()
}

// Error returns any error encountered during iteration.
func (it *TableIterator) Error() error {
	return it.err
}

// loadDataBlock loads the data block pointed to by the current index entry.
func (it *TableIterator) loadDataBlock() {
	// Keep the first corruption reported by the index iterator or by the
	// block being left, so moving on to another block does not hide it.
	if it.err == nil && it.dataIter != nil {
		it.err = it.dataIter.Error()
	}
	if it.err == nil {
		it.err = it.indexIter.Error()
	}
	if it.err != nil {
		it.dataBlock = nil
		it.dataIter = nil
		return
	}

	if !it.indexIter.Valid() {
		it.dataBlock = nil
		it.dataIter = nil
		return
	}

	handle, _, err := block.DecodeHandle(it.indexIter.Value())
	if err != nil {
		it.err = err
		it.dataBlock = nil
		it.dataIter = nil
		return
	}

	dataBlock, err := it.reader.readBlock(handle)
	if err != nil {
		it.err = err
		it.dataBlock = nil
		it.dataIter = nil
		return
	}

	it.dataBlock = dataBlock
	it.dataIter = dataBlock.NewIteratorWithComparer(comparerAdapter{it.reader.options.Comparator})
}
