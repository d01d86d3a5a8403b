package table

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/aalhour/sstable/internal/block"
	"github.com/aalhour/sstable/internal/compression"
)

type memFile struct {
	data []byte
}

func (f *memFile) Write(p []byte) (int, error) {
	f.data = append(f.data, p...)
	return len(p), nil
}

func (f *memFile) Close() error { return nil }

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(f.data)) {
		return 0, fmt.Errorf("out of range")
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("short read")
	}
	return n, nil
}

func (f *memFile) Size() int64 { return int64(len(f.data)) }

func buildTable(t *testing.T, keys, values []string, opts BuilderOptions) *memFile {
	t.Helper()
	f := &memFile{}
	b := NewTableBuilder(f, opts)
	for i := range keys {
		if err := b.Add([]byte(keys[i]), []byte(values[i])); err != nil {
			t.Fatalf("Add(%q): %v", keys[i], err)
		}
	}
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return f
}

// TestRoundTrip covers property 1: every written key is found with its
// exact value, for a key set that spans multiple data blocks.
func TestRoundTrip(t *testing.T) {
	opts := DefaultBuilderOptions()
	opts.BlockSize = 64 // force multiple data blocks

	var keys, values []string
	for i := range 200 {
		keys = append(keys, fmt.Sprintf("key%04d", i))
		values = append(values, fmt.Sprintf("val%04d", i))
	}

	f := buildTable(t, keys, values, opts)

	r, err := Open(f, ReaderOptions{VerifyChecksums: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	for i := range keys {
		value, found, err := r.Get([]byte(keys[i]))
		if err != nil {
			t.Fatalf("Get(%q): %v", keys[i], err)
		}
		if !found {
			t.Fatalf("Get(%q): not found", keys[i])
		}
		if string(value) != values[i] {
			t.Fatalf("Get(%q) = %q, want %q", keys[i], value, values[i])
		}
	}
}

// TestNegativeLookup covers property 2: a key between two written keys is
// either absent or resolves to a key strictly greater than it.
func TestNegativeLookup(t *testing.T) {
	opts := DefaultBuilderOptions()
	opts.BlockSize = 64
	keys := []string{"a", "c", "e", "g", "i", "k", "m", "o"}
	values := []string{"1", "2", "3", "4", "5", "6", "7", "8"}

	f := buildTable(t, keys, values, opts)
	r, err := Open(f, DefaultReaderOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	it := r.NewIterator()
	it.Seek([]byte("b"))
	if it.Valid() && bytes.Compare(it.Key(), []byte("b")) <= 0 {
		t.Errorf("Seek(b) landed on %q, want strictly greater", it.Key())
	}
}

func TestTableMultiBlockIterationOrder(t *testing.T) {
	opts := DefaultBuilderOptions()
	opts.BlockSize = 32

	var keys []string
	for i := range 50 {
		keys = append(keys, fmt.Sprintf("k%03d", i))
	}
	values := make([]string, len(keys))
	for i := range values {
		values[i] = fmt.Sprintf("v%03d", i)
	}

	f := buildTable(t, keys, values, opts)
	r, err := Open(f, DefaultReaderOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	it := r.NewIterator()
	i := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if string(it.Key()) != keys[i] {
			t.Fatalf("entry %d = %q, want %q", i, it.Key(), keys[i])
		}
		i++
	}
	if i != len(keys) {
		t.Fatalf("iterated %d entries, want %d", i, len(keys))
	}

	// Reverse direction must reproduce the same order backwards.
	it.SeekToLast()
	for i = len(keys) - 1; i >= 0; i-- {
		if !it.Valid() || string(it.Key()) != keys[i] {
			t.Fatalf("reverse entry %d = %q, want %q", i, it.Key(), keys[i])
		}
		it.Prev()
	}
}

// TestFramingIntegrity covers property 5: a bit flip in a block causes a
// checksum-verified read to fail.
func TestFramingIntegrity(t *testing.T) {
	f := buildTable(t, []string{"a", "b", "c"}, []string{"1", "2", "3"}, DefaultBuilderOptions())

	// Flip a bit somewhere in the first data block's payload. Open reads
	// only the footer and the index block, so it still succeeds; the
	// checksum-verified read of the data block is what fails.
	f.data[0] ^= 0x01

	r, err := Open(f, ReaderOptions{VerifyChecksums: true})
	if err != nil {
		t.Fatalf("Open: %v (only a data block was corrupted)", err)
	}
	defer r.Close()

	if _, _, err := r.Get([]byte("a")); err == nil {
		t.Fatal("Get over the corrupted data block should fail checksum verification")
	}
}

func TestFramingIntegrityOnDataBlock(t *testing.T) {
	opts := DefaultBuilderOptions()
	f := buildTable(t, []string{"alpha", "beta", "gamma"}, []string{"1", "2", "3"}, opts)

	r, err := Open(f, ReaderOptions{VerifyChecksums: false})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	indexHandle := r.Footer().IndexHandle
	r.Close()

	// Corrupt a byte strictly inside the data block region (before the index).
	if indexHandle.Offset == 0 {
		t.Fatal("expected a non-empty data region before the index block")
	}
	corrupted := append([]byte(nil), f.data...)
	corrupted[0] ^= 0xff
	cf := &memFile{data: corrupted}

	r2, err := Open(cf, ReaderOptions{VerifyChecksums: true})
	if err != nil {
		// Corruption inside the checksummed data block was caught while
		// opening (e.g. if it landed in the index) -- also an acceptable outcome.
		return
	}
	defer r2.Close()

	_, _, err = r2.Get([]byte("alpha"))
	if err == nil {
		t.Error("Get over a corrupted data block should fail checksum verification")
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	for _, codec := range []compression.Type{compression.NoCompression, compression.SnappyCompression} {
		t.Run(codec.String(), func(t *testing.T) {
			opts := DefaultBuilderOptions()
			opts.Compression = codec
			opts.BlockSize = 64

			var keys, values []string
			for i := range 100 {
				keys = append(keys, fmt.Sprintf("key%04d", i))
				values = append(values, fmt.Sprintf("a-fairly-repetitive-value-%04d-padding-padding-padding", i))
			}

			f := buildTable(t, keys, values, opts)
			r, err := Open(f, DefaultReaderOptions())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer r.Close()

			for i := range keys {
				value, found, err := r.Get([]byte(keys[i]))
				if err != nil || !found {
					t.Fatalf("Get(%q): found=%v err=%v", keys[i], found, err)
				}
				if string(value) != values[i] {
					t.Fatalf("Get(%q) = %q, want %q", keys[i], value, values[i])
				}
			}
		})
	}
}

func TestEmptyTable(t *testing.T) {
	f := &memFile{}
	b := NewTableBuilder(f, DefaultBuilderOptions())
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish on empty builder: %v", err)
	}

	r, err := Open(f, DefaultReaderOptions())
	if err != nil {
		t.Fatalf("Open empty table: %v", err)
	}
	defer r.Close()

	it := r.NewIterator()
	it.SeekToFirst()
	if it.Valid() {
		t.Error("empty table iterator should be invalid")
	}
}

func TestAddAfterFinishFails(t *testing.T) {
	f := &memFile{}
	b := NewTableBuilder(f, DefaultBuilderOptions())
	if err := b.Add([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := b.Add([]byte("b"), []byte("2")); err != ErrBuilderFinished {
		t.Errorf("Add after Finish = %v, want ErrBuilderFinished", err)
	}
}

func TestIndexUsesShortestSeparator(t *testing.T) {
	// With the default bytewise comparator, FindShortestSeparator("animal",
	// "banana") keeps "animal": the first bytes differ by one, so no shorter
	// key fits between them. FindShortSuccessor("cherry") shortens the last
	// index key to "d". Confirm the index block's handles still route
	// lookups correctly.
	opts := DefaultBuilderOptions()
	opts.BlockSize = 1 // force a flush after every key

	f := buildTable(t, []string{"animal", "banana", "cherry"}, []string{"1", "2", "3"}, opts)
	r, err := Open(f, DefaultReaderOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	for _, k := range []string{"animal", "banana", "cherry"} {
		if _, found, err := r.Get([]byte(k)); err != nil || !found {
			t.Fatalf("Get(%q): found=%v err=%v", k, found, err)
		}
	}
}

// TestDataBlockHandles covers the index-derived block layout callers like
// sstdump use in place of guessing block boundaries from entry counts.
func TestDataBlockHandles(t *testing.T) {
	opts := DefaultBuilderOptions()
	opts.BlockSize = 32

	var keys, values []string
	for i := range 60 {
		keys = append(keys, fmt.Sprintf("k%03d", i))
		values = append(values, fmt.Sprintf("v%03d", i))
	}

	f := buildTable(t, keys, values, opts)
	r, err := Open(f, DefaultReaderOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	handles, err := r.DataBlockHandles()
	if err != nil {
		t.Fatalf("DataBlockHandles: %v", err)
	}
	if len(handles) < 2 {
		t.Fatalf("got %d data block handles, want at least 2 for a small block size", len(handles))
	}

	var gotKeys []string
	for i, h := range handles {
		blk, err := r.ReadDataBlock(h)
		if err != nil {
			t.Fatalf("ReadDataBlock(%d): %v", i, err)
		}
		it := blk.NewIterator()
		for it.SeekToFirst(); it.Valid(); it.Next() {
			gotKeys = append(gotKeys, string(it.Key()))
		}
		if err := it.Error(); err != nil {
			t.Fatalf("iterate block %d: %v", i, err)
		}
	}

	if len(gotKeys) != len(keys) {
		t.Fatalf("got %d keys across data blocks, want %d", len(gotKeys), len(keys))
	}
	for i, k := range keys {
		if gotKeys[i] != k {
			t.Fatalf("key %d = %q, want %q", i, gotKeys[i], k)
		}
	}
}

func TestFooterMagicNumber(t *testing.T) {
	f := buildTable(t, []string{"a"}, []string{"1"}, DefaultBuilderOptions())
	r, err := Open(f, DefaultReaderOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if r.Footer().TableMagicNumber != block.LegacyBlockBasedTableMagicNumber {
		t.Errorf("TableMagicNumber = %x, want %x", r.Footer().TableMagicNumber, block.LegacyBlockBasedTableMagicNumber)
	}
}
