package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileManager maps each table to a file of PageSize pages. It is the
// serialization boundary: no page contents are cached here.
type FileManager interface {
	// ReadPage reads page pageID of table into dst (exactly PageSize bytes).
	ReadPage(table string, pageID uint32, dst []byte) error
	// WritePage writes src (exactly PageSize bytes) as page pageID of table.
	WritePage(table string, pageID uint32, src []byte) error
	// AllocatePage extends the table file by one zeroed page and
	// returns the new page id.
	AllocatePage(table string) (uint32, error)
	// PageCount reports the number of pages in the table file.
	PageCount(table string) (uint32, error)
	// Flush syncs the table file to stable storage.
	Flush(table string) error
	// RemoveTable deletes the table file; missing files are a no-op.
	RemoveTable(table string) error
	Close() error
}

var _ FileManager = (*DiskFileManager)(nil)

// DiskFileManager stores each table as "<dir>/<table>.tbl". File
// handles stay open until Close.
type DiskFileManager struct {
	dir   string
	files map[string]*os.File
}

func NewDiskFileManager(dir string) (*DiskFileManager, error) {
	if err := os.MkdirAll(dir, FileMode0755); err != nil {
		return nil, err
	}
	return &DiskFileManager{
		dir:   dir,
		files: make(map[string]*os.File),
	}, nil
}

func (fm *DiskFileManager) open(table string) (*os.File, error) {
	if f, ok := fm.files[table]; ok {
		return f, nil
	}
	path := filepath.Join(fm.dir, table+TableFileExt)
	// RDWR | CREATE (no truncate)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, err
	}
	fm.files[table] = f
	return f, nil
}

func (fm *DiskFileManager) ReadPage(table string, pageID uint32, dst []byte) error {
	if len(dst) != PageSize {
		return fmt.Errorf("file_manager: dst must be exactly %d bytes", PageSize)
	}
	f, err := fm.open(table)
	if err != nil {
		return err
	}
	n, err := f.ReadAt(dst, int64(pageID)*PageSize)
	if err != nil && err != io.EOF {
		return err
	}
	// Zero-fill on a short read so a freshly allocated page reads as
	// unformatted.
	for i := n; i < PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

func (fm *DiskFileManager) WritePage(table string, pageID uint32, src []byte) error {
	if len(src) != PageSize {
		return fmt.Errorf("file_manager: src must be exactly %d bytes", PageSize)
	}
	f, err := fm.open(table)
	if err != nil {
		return err
	}
	n, err := f.WriteAt(src, int64(pageID)*PageSize)
	if err != nil {
		return err
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	return nil
}

func (fm *DiskFileManager) AllocatePage(table string) (uint32, error) {
	f, err := fm.open(table)
	if err != nil {
		return 0, err
	}
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pageID := uint32(st.Size() / PageSize)
	if err := f.Truncate(st.Size() + PageSize); err != nil {
		return 0, err
	}
	return pageID, nil
}

func (fm *DiskFileManager) PageCount(table string) (uint32, error) {
	path := filepath.Join(fm.dir, table+TableFileExt)
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint32(st.Size() / PageSize), nil
}

func (fm *DiskFileManager) Flush(table string) error {
	f, ok := fm.files[table]
	if !ok {
		return nil
	}
	return f.Sync()
}

func (fm *DiskFileManager) Close() error {
	var firstErr error
	for name, f := range fm.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(fm.files, name)
	}
	return firstErr
}

// RemoveTable deletes the heap file backing table.
func (fm *DiskFileManager) RemoveTable(table string) error {
	if f, ok := fm.files[table]; ok {
		_ = f.Close()
		delete(fm.files, table)
	}
	err := os.Remove(filepath.Join(fm.dir, table+TableFileExt))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
