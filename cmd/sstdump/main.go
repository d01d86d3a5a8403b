// Command sstdump inspects SST files produced by this module.
//
// Usage:
//
//	sstdump --file=<path> [options]
//
// Commands:
//
//	scan        Scan all key-value pairs (default)
//	check       Verify SST file integrity
//	raw         Show block-level layout information
//
// Reference: LevelDB tools/sst_dump.cc
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aalhour/sstable/internal/options"
	"github.com/aalhour/sstable/internal/table"
	"github.com/aalhour/sstable/internal/vfs"
)

var (
	filePath        = flag.String("file", "", "Path to the SST file (required)")
	command         = flag.String("command", "scan", "Command: scan, check, raw")
	hexOutput       = flag.Bool("hex", false, "Output keys and values in hex format")
	limit           = flag.Int("limit", 0, "Limit number of entries (0 = unlimited)")
	fromKey         = flag.String("from", "", "Start key for scan")
	toKey           = flag.String("to", "", "End key for scan")
	showValues      = flag.Bool("values", true, "Show values in scan output")
	help            = flag.Bool("help", false, "Print help")
	showSummary     = flag.Bool("summary", true, "Show summary statistics")
	verifyChecksums = flag.Bool("verify_checksums", true, "Verify block checksums during check")
	optionsPath     = flag.String("options", "", "Path to a companion OPTIONS file (comparator/block settings)")
)

// parsedOptions holds the settings loaded from --options, if given.
var parsedOptions *options.ParsedOptions

// loadOptionsFile parses the file named by --options, if any, and checks
// that its recorded comparator is the bytewise comparator this tool (and
// the rest of the module) actually supports. Returns nil if --options
// wasn't given.
func loadOptionsFile() (*options.ParsedOptions, error) {
	if *optionsPath == "" {
		return nil, nil
	}

	parsed, err := options.ReadOptionsFile(vfs.Default(), *optionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	if want := (table.DefaultComparator{}).Name(); parsed.ComparatorName != want {
		return nil, fmt.Errorf("options file declares comparator %q, only %q is supported",
			parsed.ComparatorName, want)
	}

	return parsed, nil
}

func main() {
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --file flag is required")
		printUsage()
		os.Exit(1)
	}

	parsed, err := loadOptionsFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	parsedOptions = parsed

	switch *command {
	case "scan":
		err = cmdScan()
	case "check":
		err = cmdCheck()
	case "raw":
		err = cmdRaw()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("sstdump - SST file inspection tool")
	fmt.Println()
	fmt.Println("Usage: sstdump --file=<path> [--command=<cmd>] [options]")
	fmt.Println()
	fmt.Println("Commands (--command):")
	fmt.Println("  scan   Scan all key-value pairs (default)")
	fmt.Println("  check  Verify SST file integrity")
	fmt.Println("  raw    Show block-level layout information")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}

func openSST(verifyChecksum bool) (*table.Reader, error) {
	fs := vfs.Default()

	file, err := fs.OpenRandomAccess(*filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	opts := table.ReaderOptions{VerifyChecksums: verifyChecksum}
	reader, err := table.Open(file, opts)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open SST: %w", err)
	}

	return reader, nil
}

func formatOutput(data []byte) string {
	if *hexOutput {
		return hex.EncodeToString(data)
	}
	for _, b := range data {
		if b < 32 || b > 126 {
			return hex.EncodeToString(data)
		}
	}
	return string(data)
}

func cmdScan() error {
	reader, err := openSST(false)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Printf("SST file: %s\n", *filePath)
	fmt.Println("---")

	iter := reader.NewIterator()

	if *fromKey != "" {
		iter.Seek([]byte(*fromKey))
	} else {
		iter.SeekToFirst()
	}

	count := 0
	var totalKeyBytes, totalValueBytes int64

	for iter.Valid() {
		key := iter.Key()

		if *toKey != "" && string(key) >= *toKey {
			break
		}

		value := iter.Value()

		if *showValues {
			fmt.Printf("%s => %s\n", formatOutput(key), formatOutput(value))
		} else {
			fmt.Printf("%s\n", formatOutput(key))
		}

		totalKeyBytes += int64(len(key))
		totalValueBytes += int64(len(value))
		count++

		if *limit > 0 && count >= *limit {
			break
		}

		iter.Next()
	}

	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterator error: %w", err)
	}

	if *showSummary {
		fmt.Println("---")
		fmt.Printf("Total entries: %d\n", count)
		fmt.Printf("Total key bytes: %d\n", totalKeyBytes)
		fmt.Printf("Total value bytes: %d\n", totalValueBytes)
	}

	return nil
}

func cmdCheck() error {
	reader, err := openSST(*verifyChecksums)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Printf("Checking SST file: %s\n", *filePath)
	if *verifyChecksums {
		fmt.Println("Block checksum verification: ENABLED")
	} else {
		fmt.Println("Block checksum verification: DISABLED")
	}
	fmt.Println("---")

	iter := reader.NewIterator()
	count := 0
	var prevKey []byte

	outOfOrder := 0
	for iter.SeekToFirst(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if prevKey != nil && string(key) <= string(prevKey) {
			outOfOrder++
		}
		prevKey = append(prevKey[:0], key...)
		count++
	}

	checksumErrors := 0
	if err := iter.Error(); err != nil {
		fmt.Printf("Error during scan: %v\n", err)
		checksumErrors++
	}

	fmt.Println("---")
	fmt.Printf("Total entries scanned: %d\n", count)
	if outOfOrder > 0 {
		fmt.Printf("Out-of-order keys: %d\n", outOfOrder)
	}

	if *verifyChecksums {
		if checksumErrors == 0 {
			fmt.Println("Checksum verification: PASSED")
		} else {
			fmt.Printf("Checksum verification: FAILED (%d errors)\n", checksumErrors)
		}
	}

	if checksumErrors+outOfOrder > 0 {
		return fmt.Errorf("file has %d errors", checksumErrors+outOfOrder)
	}

	fmt.Println("SST file is valid")
	return nil
}

func cmdRaw() error {
	fs := vfs.Default()

	info, err := fs.Stat(*filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	reader, err := openSST(false)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Printf("SST file: %s\n", *filePath)
	fmt.Printf("File name: %s\n", filepath.Base(*filePath))
	fmt.Printf("File size: %d bytes\n", info.Size())

	footer := reader.Footer()
	fmt.Printf("Index block offset: %d\n", footer.IndexHandle.Offset)
	fmt.Printf("Index block size: %d\n", footer.IndexHandle.Size)
	if parsedOptions != nil {
		fmt.Printf("Configured block size: %d\n", parsedOptions.BlockSize)
		fmt.Printf("Configured block restart interval: %d\n", parsedOptions.BlockRestartInterval)
		fmt.Printf("Configured compression: %s\n", options.CompressionTypeToString(parsedOptions.Compression))
	}
	fmt.Println("---")

	handles, err := reader.DataBlockHandles()
	if err != nil {
		return fmt.Errorf("read index block handles: %w", err)
	}

	count := 0
	for i, handle := range handles {
		blk, err := reader.ReadDataBlock(handle)
		if err != nil {
			return fmt.Errorf("read data block %d: %w", i, err)
		}

		entries := 0
		var first, last []byte
		it := blk.NewIterator()
		for it.SeekToFirst(); it.Valid(); it.Next() {
			if entries == 0 {
				first = append([]byte(nil), it.Key()...)
			}
			last = append([]byte(nil), it.Key()...)
			entries++
		}
		if err := it.Error(); err != nil {
			return fmt.Errorf("scan data block %d: %w", i, err)
		}

		fmt.Printf("Block %d: offset=%d size=%d entries=%d first=%s last=%s\n",
			i, handle.Offset, handle.Size, entries, formatOutput(first), formatOutput(last))

		count += entries
	}

	fmt.Println("---")
	fmt.Printf("Total entries: %d\n", count)
	fmt.Printf("Data blocks: %d\n", len(handles))

	return nil
}
