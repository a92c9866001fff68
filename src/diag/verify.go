// Package diag implements an out-of-process consistency scan over a tree
// file. It never instantiates Page[K, V] or Tree[K, V] — a scan runs
// against a file whose key/value codec the caller may not have compiled
// in (an on-call operator checking a data file, say), so it works
// directly on the raw page-tag and counter bytes the spec defines,
// mmap'd read-only. Grounded in the teacher's mmap-based consistency
// check in database_storage_engine.go / bundle_storage_engine.go.
package diag

import (
	"encoding/binary"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const pageSize = 4096
const ptrSize = 4

const (
	tagMetaBit     = 0x01
	tagInternalBit = 0x02
)

// Report summarizes a VerifyFile scan.
type Report struct {
	TotalPages  int64
	RootIndex   int64
	LeafPages   int
	InternalPages int
}

// VerifyFile scans the file at path and returns every structural
// violation found, aggregated with multierr rather than stopping at the
// first one. keySize and valSize must be the BinSize() of the codecs the
// file was written with, since the scan needs them to recompute each
// page kind's max_items without decoding individual keys or values.
func VerifyFile(path string, keySize, valSize int) (Report, error) {
	var report Report

	f, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("diag: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return report, fmt.Errorf("diag: stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return report, fmt.Errorf("diag: %s is empty", path)
	}

	var errs error
	if size%pageSize != 0 {
		errs = multierr.Append(errs, fmt.Errorf("diag: file size %d is not a multiple of page size %d", size, pageSize))
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return report, fmt.Errorf("diag: mmap %s: %w", path, err)
	}
	defer unix.Munmap(data)

	if len(data) < pageSize || data[0]&tagMetaBit == 0 {
		errs = multierr.Append(errs, fmt.Errorf("diag: page 0 is not tagged meta"))
		return report, errs
	}

	rootIndex := int64(binary.BigEndian.Uint32(data[4:8]))
	totalPages := int64(binary.BigEndian.Uint32(data[8:12]))
	report.RootIndex = rootIndex
	report.TotalPages = totalPages

	if totalPages*pageSize != size {
		errs = multierr.Append(errs, fmt.Errorf("diag: meta total_pages=%d (%d bytes) does not match file size %d", totalPages, totalPages*pageSize, size))
	}
	if rootIndex <= 0 || rootIndex >= totalPages {
		errs = multierr.Append(errs, fmt.Errorf("diag: meta root_index=%d out of range [1, %d)", rootIndex, totalPages))
	}

	maxInternal := (pageSize - 8 - ptrSize) / (keySize + ptrSize)
	maxLeaf := (pageSize - 8) / (keySize + valSize)

	pagesInFile := size / pageSize
	for idx := int64(1); idx < pagesInFile && idx < totalPages; idx++ {
		off := idx * pageSize
		tag := data[off]
		itemCount := int(binary.BigEndian.Uint32(data[off+4 : off+8]))

		switch {
		case tag&tagMetaBit != 0:
			errs = multierr.Append(errs, fmt.Errorf("diag: page %d is tagged meta but is not page 0", idx))
		case tag&tagInternalBit != 0:
			report.InternalPages++
			if itemCount > maxInternal {
				errs = multierr.Append(errs, fmt.Errorf("diag: internal page %d item_count=%d exceeds capacity %d", idx, itemCount, maxInternal))
			}
		default:
			report.LeafPages++
			if itemCount > maxLeaf {
				errs = multierr.Append(errs, fmt.Errorf("diag: leaf page %d item_count=%d exceeds capacity %d", idx, itemCount, maxLeaf))
			}
		}
	}

	return report, errs
}
