package storage

import (
	"io"

	"github.com/dsnet/golib/memfile"
)

var _ FileManager = (*MemFileManager)(nil)

// MemFileManager keeps every table file in memory. Tests use it to run
// the full storage stack without touching disk.
type MemFileManager struct {
	files map[string]*memfile.File
}

func NewMemFileManager() *MemFileManager {
	return &MemFileManager{files: make(map[string]*memfile.File)}
}

func (fm *MemFileManager) open(table string) *memfile.File {
	f, ok := fm.files[table]
	if !ok {
		f = memfile.New(make([]byte, 0))
		fm.files[table] = f
	}
	return f
}

func (fm *MemFileManager) ReadPage(table string, pageID uint32, dst []byte) error {
	if len(dst) != PageSize {
		return ErrWrongSize
	}
	f := fm.open(table)
	n, err := f.ReadAt(dst, int64(pageID)*PageSize)
	if err != nil && err != io.EOF {
		return err
	}
	for i := n; i < PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

func (fm *MemFileManager) WritePage(table string, pageID uint32, src []byte) error {
	if len(src) != PageSize {
		return ErrWrongSize
	}
	_, err := fm.open(table).WriteAt(src, int64(pageID)*PageSize)
	return err
}

func (fm *MemFileManager) AllocatePage(table string) (uint32, error) {
	f := fm.open(table)
	pageID := uint32(len(f.Bytes()) / PageSize)
	if err := f.Truncate(int64(pageID+1) * PageSize); err != nil {
		return 0, err
	}
	return pageID, nil
}

func (fm *MemFileManager) PageCount(table string) (uint32, error) {
	f, ok := fm.files[table]
	if !ok {
		return 0, nil
	}
	return uint32(len(f.Bytes()) / PageSize), nil
}

func (fm *MemFileManager) Flush(string) error { return nil }

func (fm *MemFileManager) RemoveTable(table string) error {
	delete(fm.files, table)
	return nil
}

func (fm *MemFileManager) Close() error { return nil }
