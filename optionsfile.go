package sstable

// optionsfile.go lets BuilderOptions/ReaderOptions be derived from, and
// persisted to, a RocksDB-style OPTIONS file (see internal/options), the
// same file format a companion "OPTIONS-NNNNNN" file records alongside an
// SST file in the teacher's lineage.

import (
	"github.com/aalhour/sstable/internal/options"
	"github.com/aalhour/sstable/internal/vfs"
)

// ParsedOptions is the subset of an OPTIONS file relevant to building and
// reading SST tables: comparator name, block size, restart interval, and
// compression.
type ParsedOptions = options.ParsedOptions

// ReadOptionsFile reads and parses a RocksDB-style OPTIONS file from fs.
func ReadOptionsFile(fs vfs.FS, path string) (*ParsedOptions, error) {
	return options.ReadOptionsFile(fs, path)
}

// OptionsFromFile reads an OPTIONS file from fs and returns BuilderOptions
// whose BlockSize, BlockRestartInterval and Compression come from the file.
// The comparator name recorded in the file is not consulted: the returned
// BuilderOptions keep sstable's default comparator and logger, and the
// returned ReaderOptions are DefaultReaderOptions().
func OptionsFromFile(fs vfs.FS, path string) (BuilderOptions, ReaderOptions, error) {
	parsed, err := ReadOptionsFile(fs, path)
	if err != nil {
		return BuilderOptions{}, ReaderOptions{}, err
	}

	builderOpts := DefaultBuilderOptions()
	builderOpts.BlockSize = parsed.BlockSize
	builderOpts.BlockRestartInterval = parsed.BlockRestartInterval
	builderOpts.Compression = parsed.Compression

	return builderOpts, DefaultReaderOptions(), nil
}

// WriteOptionsFile records opts' block layout, compression, and comparator
// name as an OPTIONS file at path, so a table built with opts can later be
// reopened with matching settings via OptionsFromFile.
func WriteOptionsFile(fs vfs.FS, path string, opts BuilderOptions) error {
	cmp := opts.Comparator
	if cmp == nil {
		cmp = DefaultComparator()
	}
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = 4096
	}
	restartInterval := opts.BlockRestartInterval
	if restartInterval <= 0 {
		restartInterval = 16
	}

	return options.WriteOptionsFile(fs, path, options.ParsedOptions{
		ComparatorName:       cmp.Name(),
		BlockSize:            blockSize,
		BlockRestartInterval: restartInterval,
		Compression:          opts.Compression,
	})
}
