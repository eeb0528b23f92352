package heap

import (
	"github.com/moonsql/moonsql/internal/bufferpool"
	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/storage"
)

// Table is the record-level view of one heap file: encode/decode rows,
// pick pages through the buffer pool, track the page count.
type Table struct {
	Name      string
	Schema    record.Schema
	BP        *bufferpool.Pool
	PageCount uint32
}

func NewTable(name string, schema record.Schema, bp *bufferpool.Pool, pageCount uint32) *Table {
	return &Table{
		Name:      name,
		Schema:    schema,
		BP:        bp,
		PageCount: pageCount,
	}
}

// Insert encodes values and appends them to the last page, allocating
// a new page when the last one is full.
func (t *Table) Insert(values []any) (RID, error) {
	rec, err := record.EncodeRow(t.Schema, values)
	if err != nil {
		return RID{}, err
	}

	if t.PageCount > 0 {
		pageID := t.PageCount - 1
		h, err := t.BP.Get(t.Name, pageID)
		if err != nil {
			return RID{}, err
		}
		slot, err := h.Page.InsertRecord(rec)
		if err == nil {
			t.BP.Unpin(h, true)
			return RID{PageID: pageID, Slot: uint16(slot)}, nil
		}
		t.BP.Unpin(h, false)
		if err != storage.ErrNoSpace {
			return RID{}, err
		}
	}

	// Last page full (or empty table): extend the file.
	pageID, h, err := t.BP.NewPage(t.Name)
	if err != nil {
		return RID{}, err
	}
	slot, err := h.Page.InsertRecord(rec)
	if err != nil {
		t.BP.Unpin(h, false)
		return RID{}, err
	}
	t.BP.Unpin(h, true)
	if pageID+1 > t.PageCount {
		t.PageCount = pageID + 1
	}
	return RID{PageID: pageID, Slot: uint16(slot)}, nil
}

// Get reads a single row by RID.
func (t *Table) Get(id RID) ([]any, error) {
	h, err := t.BP.Get(t.Name, id.PageID)
	if err != nil {
		return nil, err
	}
	defer t.BP.Unpin(h, false)

	rec, err := h.Page.ReadRecord(int(id.Slot))
	if err != nil {
		return nil, err
	}
	return record.DecodeRow(t.Schema, rec)
}

// Delete marks the row's slot as a tombstone. Deleting an
// already-deleted row is a no-op.
func (t *Table) Delete(id RID) error {
	h, err := t.BP.Get(t.Name, id.PageID)
	if err != nil {
		return err
	}
	err = h.Page.DeleteRecord(int(id.Slot))
	t.BP.Unpin(h, err == nil)
	return err
}

// Scan invokes fn for every live row in RID order. Built on Iterator;
// the callback shape matches most internal callers.
func (t *Table) Scan(fn func(id RID, row []any) error) error {
	it := t.NewIterator()
	defer it.Close()

	for {
		id, row, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(id, row); err != nil {
			return err
		}
	}
}

// Iterator walks pages 0..PageCount and slots 0..SlotCount in order,
// skipping tombstones. It holds at most one pinned page at a time. The
// page range is fixed at creation, so rows inserted after the iterator
// starts are not guaranteed to appear.
type Iterator struct {
	t         *Table
	pageCount uint32
	pageID    uint32
	slot      int
	h         *bufferpool.PageHandle
}

func (t *Table) NewIterator() *Iterator {
	return &Iterator{t: t, pageCount: t.PageCount}
}

// Next returns the next live row, or ok=false when the scan is done.
func (it *Iterator) Next() (RID, []any, bool, error) {
	for {
		if it.h == nil {
			if it.pageID >= it.pageCount {
				return RID{}, nil, false, nil
			}
			h, err := it.t.BP.Get(it.t.Name, it.pageID)
			if err != nil {
				return RID{}, nil, false, err
			}
			it.h = h
			it.slot = 0
		}

		page := it.h.Page
		if it.slot >= page.SlotCount() {
			it.t.BP.Unpin(it.h, false)
			it.h = nil
			it.pageID++
			continue
		}

		slot := it.slot
		it.slot++

		live, err := page.IsLiveSlot(slot)
		if err != nil {
			it.Close()
			return RID{}, nil, false, err
		}
		if !live {
			continue
		}

		rec, err := page.ReadRecord(slot)
		if err != nil {
			it.Close()
			return RID{}, nil, false, err
		}
		row, err := record.DecodeRow(it.t.Schema, rec)
		if err != nil {
			it.Close()
			return RID{}, nil, false, err
		}
		return RID{PageID: it.pageID, Slot: uint16(slot)}, row, true, nil
	}
}

// Close releases the pinned page, if any. Safe to call twice.
func (it *Iterator) Close() {
	if it.h != nil {
		it.t.BP.Unpin(it.h, false)
		it.h = nil
	}
}
