package tree

import (
	"fmt"
	"os"
	"sync"
)

// fileHandle guards the single *os.File backing a Tree. The teacher's
// FileManager keys a whole map of files behind one mutex, since it backs a
// multi-database engine; a Tree only ever owns one file, so this is that
// idea trimmed to a single entry.
type fileHandle struct {
	mu    sync.RWMutex
	f     *os.File
	fsync bool
}

func openFileHandle(path string, fsync bool) (*fileHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("tree: open %s: %w", path, err)
	}
	return &fileHandle{f: f, fsync: fsync}, nil
}

func (fh *fileHandle) size() (int64, error) {
	info, err := fh.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("tree: stat: %w", err)
	}
	return info.Size(), nil
}

func (fh *fileHandle) close() error {
	return fh.f.Close()
}
