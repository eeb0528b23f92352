package heap

import "fmt"

// RID identifies a record by its page and slot. It is stable while the
// slot is live.
type RID struct {
	PageID uint32
	Slot   uint16
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageID, r.Slot)
}
