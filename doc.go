/*
Package sstable provides a pure-Go reader and writer for sorted-string
tables, the on-disk block-based format LSM-tree storage engines use to
hold immutable, sorted runs of key-value pairs.

A table is a flat sequence of prefix-compressed data blocks followed by
an index block and a fixed-size footer. Block layout, checksumming, and
the footer format follow the LevelDB/RocksDB block-based table lineage,
so tables produced here are byte-compatible with readers built against
that family of formats.

# Usage

For a runnable example, see ExampleNewTableBuilder in examples_test.go,
which is written against the public API.

# Scope

This package builds and reads individual table files. It does not
implement a write-ahead log, memtable, compaction, or any notion of
multiple table levels — callers that need a full storage engine build
one on top of this package, the way an LSM-tree's flush and compaction
paths build tables and then hand them to a reader.

# Concurrency

A Reader and its TableIterator instances are safe for concurrent use by
multiple goroutines reading independently; each goroutine should use its
own TableIterator. A TableBuilder is not safe for concurrent use.

Reference: LevelDB table/table.h, table/table_builder.h
*/
package sstable
