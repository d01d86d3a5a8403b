// Package options implements OPTIONS file parsing for table-building
// configuration.
//
// This package is internal and not part of the public API.
//
// Reference: RocksDB v10.7.5
//   - options/options_helper.cc
//   - options/db_options.cc
package options

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aalhour/sstable/internal/compression"
	"github.com/aalhour/sstable/internal/vfs"
)

// ParsedOptions represents the subset of an OPTIONS file relevant to
// building and reading SST tables.
type ParsedOptions struct {
	RocksDBVersion       string
	OptionsFileVersion   int
	ComparatorName       string
	BlockSize            int
	BlockRestartInterval int
	Compression          compression.Type
}

// ReadOptionsFile reads and parses an OPTIONS file.
func ReadOptionsFile(fs vfs.FS, path string) (*ParsedOptions, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return ParseOptionsFile(file)
}

// ParseOptionsFile parses options from a reader.
func ParseOptionsFile(r io.Reader) (*ParsedOptions, error) {
	opts := &ParsedOptions{
		ComparatorName:       "leveldb.BytewiseComparator",
		BlockSize:            4096,
		BlockRestartInterval: 16,
		Compression:          compression.NoCompression,
	}

	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch {
		case currentSection == "Version":
			switch key {
			case "rocksdb_version":
				opts.RocksDBVersion = value
			case "options_file_version":
				opts.OptionsFileVersion, _ = strconv.Atoi(value)
			}

		case strings.HasPrefix(currentSection, "CFOptions"):
			switch key {
			case "comparator":
				opts.ComparatorName = value
			case "compression":
				opts.Compression = StringToCompressionType(value)
			}

		case strings.HasPrefix(currentSection, "TableOptions"):
			switch key {
			case "block_size":
				if v, err := strconv.Atoi(value); err == nil {
					opts.BlockSize = v
				}
			case "block_restart_interval":
				if v, err := strconv.Atoi(value); err == nil {
					opts.BlockRestartInterval = v
				}
			}
		}
	}

	return opts, scanner.Err()
}

// StringToCompressionType converts a string to compression.Type.
func StringToCompressionType(s string) compression.Type {
	switch s {
	case "kNoCompression":
		return compression.NoCompression
	case "kSnappyCompression":
		return compression.SnappyCompression
	case "kZlibCompression":
		return compression.ZlibCompression
	case "kLZ4Compression":
		return compression.LZ4Compression
	case "kLZ4HCCompression":
		return compression.LZ4HCCompression
	case "kZSTD":
		return compression.ZstdCompression
	default:
		return compression.NoCompression
	}
}

// CompressionTypeToString converts a compression.Type to its OPTIONS file
// string representation, the inverse of StringToCompressionType.
func CompressionTypeToString(t compression.Type) string {
	switch t {
	case compression.NoCompression:
		return "kNoCompression"
	case compression.SnappyCompression:
		return "kSnappyCompression"
	case compression.ZlibCompression:
		return "kZlibCompression"
	case compression.LZ4Compression:
		return "kLZ4Compression"
	case compression.LZ4HCCompression:
		return "kLZ4HCCompression"
	case compression.ZstdCompression:
		return "kZSTD"
	default:
		return "kNoCompression"
	}
}

// WriteOptionsFile writes parsed as a RocksDB-style OPTIONS file at path,
// covering the same CFOptions/TableOptions fields ParseOptionsFile reads
// back. This lets a table builder record the settings it used so a later
// reader (or another builder appending a companion table) can recover them
// via ReadOptionsFile.
func WriteOptionsFile(fs vfs.FS, path string, parsed ParsedOptions) error {
	file, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	comparatorName := parsed.ComparatorName
	if comparatorName == "" {
		comparatorName = "leveldb.BytewiseComparator"
	}
	blockSize := parsed.BlockSize
	if blockSize <= 0 {
		blockSize = 4096
	}
	restartInterval := parsed.BlockRestartInterval
	if restartInterval <= 0 {
		restartInterval = 16
	}

	w := bufio.NewWriter(file)

	fmt.Fprintln(w, "[Version]")
	fmt.Fprintln(w, "  rocksdb_version=10.7.5")
	fmt.Fprintln(w, "  options_file_version=1")
	fmt.Fprintln(w)

	fmt.Fprintln(w, `[CFOptions "default"]`)
	fmt.Fprintf(w, "  comparator=%s\n", comparatorName)
	fmt.Fprintf(w, "  compression=%s\n", CompressionTypeToString(parsed.Compression))
	fmt.Fprintln(w)

	fmt.Fprintln(w, `[TableOptions/BlockBasedTable "default"]`)
	fmt.Fprintf(w, "  block_size=%d\n", blockSize)
	fmt.Fprintf(w, "  block_restart_interval=%d\n", restartInterval)

	if err := w.Flush(); err != nil {
		return err
	}
	return file.Sync()
}
