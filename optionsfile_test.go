package sstable_test

import (
	"path/filepath"
	"testing"

	"github.com/aalhour/sstable"
	"github.com/aalhour/sstable/internal/vfs"
)

func TestWriteOptionsFileRoundTrip(t *testing.T) {
	fs := vfs.Default()
	path := filepath.Join(t.TempDir(), "OPTIONS-000001")

	opts := sstable.DefaultBuilderOptions()
	opts.BlockSize = 8192
	opts.BlockRestartInterval = 8
	opts.Compression = sstable.SnappyCompression

	if err := sstable.WriteOptionsFile(fs, path, opts); err != nil {
		t.Fatalf("WriteOptionsFile: %v", err)
	}

	builderOpts, _, err := sstable.OptionsFromFile(fs, path)
	if err != nil {
		t.Fatalf("OptionsFromFile: %v", err)
	}

	if builderOpts.BlockSize != opts.BlockSize {
		t.Errorf("BlockSize = %d, want %d", builderOpts.BlockSize, opts.BlockSize)
	}
	if builderOpts.BlockRestartInterval != opts.BlockRestartInterval {
		t.Errorf("BlockRestartInterval = %d, want %d", builderOpts.BlockRestartInterval, opts.BlockRestartInterval)
	}
	if builderOpts.Compression != opts.Compression {
		t.Errorf("Compression = %v, want %v", builderOpts.Compression, opts.Compression)
	}
}

func TestReadOptionsFileDefaultsOnMissingComparator(t *testing.T) {
	fs := vfs.Default()
	path := filepath.Join(t.TempDir(), "OPTIONS-000002")

	// With no comparator set, WriteOptionsFile records the bytewise default.
	opts := sstable.DefaultBuilderOptions()
	opts.Comparator = nil

	if err := sstable.WriteOptionsFile(fs, path, opts); err != nil {
		t.Fatalf("WriteOptionsFile: %v", err)
	}

	parsed, err := sstable.ReadOptionsFile(fs, path)
	if err != nil {
		t.Fatalf("ReadOptionsFile: %v", err)
	}
	if parsed.ComparatorName != sstable.DefaultComparator().Name() {
		t.Errorf("ComparatorName = %q, want %q", parsed.ComparatorName, sstable.DefaultComparator().Name())
	}
}
