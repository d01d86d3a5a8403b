// footer.go implements SST file footer parsing and encoding.
//
// The footer is the fixed-size trailer at the end of every SST file. It
// holds a single BlockHandle pointing at the index block plus a magic
// number identifying the file as a block-based table. Older LevelDB-family
// formats additionally reserved room for a second (metaindex) handle; this
// implementation only ever stores the index handle, but keeps the wider
// field so the on-disk layout lines up byte-for-byte with that lineage.
//
// Reference: LevelDB table/format.h (Footer class), table/format.cc
package block

import (
	"encoding/binary"
)

// LegacyBlockBasedTableMagicNumber identifies a block-based table footer.
const LegacyBlockBasedTableMagicNumber uint64 = 0xdb4775248b80fb57

// MagicNumberLengthByte is the length of the magic number in bytes.
const MagicNumberLengthByte = 8

// BlockTrailerSize is the size of the per-block trailer: 1 byte compression
// type followed by a 4 byte masked CRC32C checksum.
const BlockTrailerSize = 5

// CompressionType represents the compression type used for a block.
// The numbering matches RocksDB's util/compression.h so that compressors
// beyond the two the footer format guarantees (none, snappy) can still be
// recorded unambiguously in the per-block trailer.
type CompressionType uint8

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
	CompressionZlib   CompressionType = 2
	CompressionLZ4    CompressionType = 4
	CompressionLZ4HC  CompressionType = 5
	CompressionZstd   CompressionType = 7
)

// Footer encapsulates the fixed information stored at the tail of every
// SST file: a handle to the index block and the magic number.
type Footer struct {
	// TableMagicNumber identifies the file as a block-based table.
	TableMagicNumber uint64

	// IndexHandle locates the index block.
	IndexHandle Handle
}

// EncodedLength is the fixed size of an encoded footer: a padded handle
// field (two varint64 handles' worth of space, though only one is used)
// plus the magic number.
const EncodedLength = 2*MaxEncodedLength + MagicNumberLengthByte

// DecodeFooter decodes a footer from the trailing EncodedLength bytes of
// an SST file. It returns ErrBadBlockFooter if the buffer is too short or
// the magic number does not match.
func DecodeFooter(data []byte) (*Footer, error) {
	if len(data) < EncodedLength {
		return nil, ErrBadBlockFooter
	}
	// The footer is always the last EncodedLength bytes; tolerate a larger
	// buffer by reading from the tail.
	data = data[len(data)-EncodedLength:]

	magicOffset := len(data) - MagicNumberLengthByte
	magic := binary.LittleEndian.Uint64(data[magicOffset:])
	if magic != LegacyBlockBasedTableMagicNumber {
		return nil, ErrBadBlockFooter
	}

	indexHandle, _, err := DecodeHandle(data[:magicOffset])
	if err != nil {
		return nil, ErrBadBlockFooter
	}

	return &Footer{
		TableMagicNumber: magic,
		IndexHandle:      indexHandle,
	}, nil
}

// EncodeTo encodes the footer into a fixed EncodedLength-byte buffer.
func (f *Footer) EncodeTo() []byte {
	buf := make([]byte, EncodedLength)

	encoded := f.IndexHandle.EncodeTo(nil)
	copy(buf, encoded)
	// The remaining bytes up to the magic number are left zero; they are
	// unused padding inherited from the two-handle legacy footer layout.

	binary.LittleEndian.PutUint64(buf[EncodedLength-MagicNumberLengthByte:], f.TableMagicNumber)
	return buf
}
