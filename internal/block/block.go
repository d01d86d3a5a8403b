package block

import (
	"encoding/binary"

	"github.com/aalhour/sstable/internal/encoding"
)

// Block represents a parsed block containing key-value pairs.
// The format is:
//
//	entries: key-value pairs with prefix compression
//	restarts: uint32[num_restarts] - offsets of restart points
//	num_restarts: uint32
//
// Each entry has the format:
//
//	shared_bytes: varint32 (shared prefix with previous key)
//	unshared_bytes: varint32 (unshared key suffix length)
//	value_length: varint32
//	key_delta: char[unshared_bytes]
//	value: char[value_length]
type Block struct {
	// data is the raw block data, including the restart array and footer.
	data []byte

	// restarts is the offset of the restarts array within data.
	restarts int

	// numRestarts is the number of restart points.
	numRestarts int
}

// NewBlock creates a new Block from raw data.
// The data slice is not copied; the caller must ensure it remains valid
// for the lifetime of the block and any iterators over it.
func NewBlock(data []byte) (*Block, error) {
	if len(data) < 4 {
		return nil, ErrBadBlock
	}

	footerOffset := len(data) - 4
	numRestarts := binary.LittleEndian.Uint32(data[footerOffset:])
	if numRestarts == 0 {
		return nil, ErrBadBlock
	}

	// restarts array is: uint32[numRestarts] followed by the count (uint32).
	// Compute in 64-bit: numRestarts can be up to 0xFFFFFFFF, and
	// numRestarts+1 would wrap to 0 in 32-bit arithmetic.
	restartsSize := (uint64(numRestarts) + 1) * 4
	if restartsSize > uint64(len(data)) {
		return nil, ErrBadBlock
	}
	restartsOffset := len(data) - int(restartsSize)

	return &Block{
		data:        data,
		restarts:    restartsOffset,
		numRestarts: int(numRestarts),
	}, nil
}

// Size returns the size of the block data.
func (b *Block) Size() int {
	return len(b.data)
}

// Data returns the raw block data.
func (b *Block) Data() []byte {
	return b.data
}

// NumRestarts returns the number of restart points.
func (b *Block) NumRestarts() int {
	return b.numRestarts
}

// GetRestartPoint returns the offset of the i-th restart point.
func (b *Block) GetRestartPoint(i int) int {
	if i < 0 || i >= b.numRestarts {
		return -1
	}
	offset := b.restarts + i*4
	return int(binary.LittleEndian.Uint32(b.data[offset:]))
}

// DataEnd returns the end offset of the entry data (start of restarts array).
func (b *Block) DataEnd() int {
	return b.restarts
}

// Entry represents a decoded key-value entry from a block.
type Entry struct {
	Key   []byte
	Value []byte
}

// Comparer compares two keys, returning <0 if a < b, 0 if equal, >0 if a > b.
// An Iterator uses it only for Seek; forward/backward traversal (Next/Prev)
// relies solely on the stored entry order and never calls it.
type Comparer interface {
	Compare(a, b []byte) int
}

// Iterator iterates over the entries in a block.
type Iterator struct {
	block       *Block
	cmp         Comparer
	data        []byte // points to block.data
	restartsEnd int    // end of entry data
	current     int    // current entry start offset in data
	nextOffset  int    // offset of next entry (after current key+value)
	key         []byte // current key (fully assembled)
	value       []byte // current value (slice into data)
	valid       bool   // whether iterator is at a valid entry
	err         error
}

// NewIterator creates a block iterator that compares keys bytewise.
func (b *Block) NewIterator() *Iterator {
	return b.NewIteratorWithComparer(bytewiseComparer{})
}

// NewIteratorWithComparer creates a block iterator that uses cmp for Seek.
func (b *Block) NewIteratorWithComparer(cmp Comparer) *Iterator {
	return &Iterator{
		block:       b,
		cmp:         cmp,
		data:        b.data,
		restartsEnd: b.restarts,
		current:     0,
		nextOffset:  0,
		valid:       false,
	}
}

// Valid returns true if the iterator is positioned at a valid entry.
func (it *Iterator) Valid() bool {
	return it.valid && it.err == nil
}

// Key returns the current key. Only valid if Valid() returns true.
func (it *Iterator) Key() []byte {
	return it.key
}

// Value returns the current value. Only valid if Valid() returns true.
func (it *Iterator) Value() []byte {
	return it.value
}

// Error returns any error encountered during iteration.
func (it *Iterator) Error() error {
	return it.err
}

// SeekToFirst positions the iterator at the first entry.
func (it *Iterator) SeekToFirst() {
	// Start at the very beginning (offset 0), not at the first restart point.
	// Entries before the first restart point still exist; only the restart
	// array's OWN offsets begin at 0 by construction.
	it.key = it.key[:0]
	it.value = nil
	it.valid = false
	it.current = 0
	it.nextOffset = 0
	it.Next()
}

// SeekToLast positions the iterator at the last entry.
func (it *Iterator) SeekToLast() {
	it.seekToRestartPoint(it.block.numRestarts - 1)

	var lastKey []byte
	var lastValue []byte
	var lastCurrent, lastNextOffset int
	var lastValid bool

	for {
		it.Next()
		if !it.Valid() {
			break
		}
		lastKey = append(lastKey[:0], it.key...)
		lastValue = it.value
		lastCurrent = it.current
		lastNextOffset = it.nextOffset
		lastValid = true
	}

	if lastValid {
		it.key = lastKey
		it.value = lastValue
		it.current = lastCurrent
		it.nextOffset = lastNextOffset
		it.valid = true
	}
}

// Next moves to the next entry.
func (it *Iterator) Next() {
	if it.err != nil {
		it.valid = false
		return
	}
	if it.nextOffset >= it.restartsEnd {
		it.valid = false
		return
	}
	it.current = it.nextOffset
	it.parseCurrentEntry()
}

// Prev moves to the previous entry.
// REQUIRES: Valid()
func (it *Iterator) Prev() {
	if it.err != nil {
		it.valid = false
		return
	}

	// Find the restart point at or before the current entry, scan forward
	// from there, and remember the last entry strictly before current.
	original := it.current

	restartIndex := it.findRestartPointBefore(original)
	restartOffset := it.block.GetRestartPoint(restartIndex)
	if restartOffset == original && restartIndex > 0 {
		restartIndex--
	}
	it.seekToRestartPoint(restartIndex)

	var prevKey, prevValue []byte
	var prevCurrent, prevNextOffset int
	found := false

	for {
		it.Next()
		if !it.Valid() || it.current >= original {
			break
		}
		prevKey = append(prevKey[:0], it.key...)
		prevValue = it.value
		prevCurrent = it.current
		prevNextOffset = it.nextOffset
		found = true
	}

	if found {
		it.key = prevKey
		it.value = prevValue
		it.current = prevCurrent
		it.nextOffset = prevNextOffset
		it.valid = true
	} else {
		it.valid = false
	}
}

// findRestartPointBefore finds the largest restart index with offset <= target.
func (it *Iterator) findRestartPointBefore(target int) int {
	left := 0
	right := it.block.numRestarts - 1

	for left < right {
		mid := (left + right + 1) / 2
		if it.block.GetRestartPoint(mid) <= target {
			left = mid
		} else {
			right = mid - 1
		}
	}
	return left
}

// seekToRestartPoint positions the iterator at the given restart point.
func (it *Iterator) seekToRestartPoint(index int) {
	it.key = it.key[:0]
	it.value = nil
	it.valid = false
	offset := max(it.block.GetRestartPoint(index), 0)
	it.current = offset
	it.nextOffset = offset
}

// parseCurrentEntry parses the entry at it.current.
func (it *Iterator) parseCurrentEntry() {
	if it.current >= it.restartsEnd {
		it.valid = false
		return
	}

	data := it.data[it.current:]
	offset := 0

	shared, n1, err := encoding.DecodeVarint32(data)
	if err != nil {
		it.err = ErrBadBlock
		it.valid = false
		return
	}
	offset += n1
	data = data[n1:]

	unshared, n2, err := encoding.DecodeVarint32(data)
	if err != nil {
		it.err = ErrBadBlock
		it.valid = false
		return
	}
	offset += n2
	data = data[n2:]

	valueLen, n3, err := encoding.DecodeVarint32(data)
	if err != nil {
		it.err = ErrBadBlock
		it.valid = false
		return
	}
	offset += n3
	data = data[n3:]

	if int(shared) > len(it.key) || len(data) < int(unshared)+int(valueLen) {
		it.err = ErrBadBlock
		it.valid = false
		return
	}

	it.key = append(it.key[:shared], data[:unshared]...)
	offset += int(unshared)
	data = data[unshared:]

	it.value = data[:valueLen]
	offset += int(valueLen)

	it.nextOffset = it.current + offset
	it.valid = true
}

// Seek positions the iterator at the first key >= target.
// Uses binary search over restart points, then a linear scan.
func (it *Iterator) Seek(target []byte) {
	left := 0
	right := it.block.numRestarts - 1

	// Find the rightmost restart point whose key is <= target.
	for left < right {
		mid := (left + right + 1) / 2
		it.seekToRestartPoint(mid)
		it.Next()

		if !it.Valid() || it.cmp.Compare(it.key, target) > 0 {
			right = mid - 1
		} else {
			left = mid
		}
	}

	it.seekToRestartPoint(left)
	for {
		it.Next()
		if !it.Valid() {
			return
		}
		if it.cmp.Compare(it.key, target) >= 0 {
			return
		}
	}
}

// bytewiseComparer is the default Comparer, used when a block iterator is
// created without an explicit one.
type bytewiseComparer struct{}

func (bytewiseComparer) Compare(a, b []byte) int {
	minLen := min(len(a), len(b))
	for i := range minLen {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
