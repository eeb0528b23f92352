package storage

import (
	"errors"
	"hash/crc32"

	"github.com/moonsql/moonsql/internal/bx"
)

// Header offsets
const (
	offPageID    = 0
	offSlotCount = 4
	offFreeSpace = 6
	offChecksum  = 8
)

var (
	ErrNoSpace     = errors.New("page: not enough free space")
	ErrBadSlot     = errors.New("page: invalid slot")
	ErrSlotDeleted = errors.New("page: slot is a tombstone")
	ErrCorruption  = errors.New("page: corrupt slot or record bounds")
	ErrBadChecksum = errors.New("page: checksum mismatch")
	ErrWrongSize   = errors.New("page: buffer size != PageSize")
)

type Slot struct {
	Offset uint16
	Length uint16 // 0 marks a tombstone
}

// +------------------+ 0
// | header (12 B)    |
// | slot directory   | <-- grows up, 4 B per slot
// +------------------+
// |   free space     |
// +------------------+ <-- free_space_offset
// |  record data     |
// |  (grows down)    |
// +------------------+ PageSize (4096)
//
// The checksum field covers bytes [12..4096) and is only meaningful on
// disk: ToBytes stamps it, FromBytes verifies it.
type Page struct {
	Buf []byte // fixed 4096 bytes
}

// NewPage wraps buf and formats it as an empty page with the given id.
func NewPage(buf []byte, pageID uint32) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongSize
	}
	p := &Page{Buf: buf}
	p.init(pageID)
	return p, nil
}

// FromBytes wraps a 4096-byte on-disk image, verifying the checksum.
// An all-zero image is accepted as an unformatted page and initialized
// in place with the given id.
func FromBytes(buf []byte, pageID uint32) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongSize
	}
	p := &Page{Buf: buf}
	if p.isZero() {
		p.init(pageID)
		return p, nil
	}
	if p.checksum() != p.computeChecksum() {
		return nil, ErrBadChecksum
	}
	return p, nil
}

// ToBytes stamps the checksum and returns the page image. The returned
// slice aliases the page buffer.
func (p *Page) ToBytes() []byte {
	p.setChecksum(p.computeChecksum())
	return p.Buf
}

func (p *Page) init(pageID uint32) {
	for i := range p.Buf {
		p.Buf[i] = 0
	}
	p.setPageID(pageID)
	p.setSlotCount(0)
	p.setFreeSpace(PageSize)
}

func (p *Page) isZero() bool {
	for _, b := range p.Buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// ---- low-level header getters/setters ----

func (p *Page) PageID() uint32        { return bx.U32At(p.Buf, offPageID) }
func (p *Page) setPageID(v uint32)    { bx.PutU32At(p.Buf, offPageID, v) }
func (p *Page) SlotCount() int        { return int(bx.U16At(p.Buf, offSlotCount)) }
func (p *Page) setSlotCount(v uint16) { bx.PutU16At(p.Buf, offSlotCount, v) }
func (p *Page) freeSpace() uint16     { return bx.U16At(p.Buf, offFreeSpace) }
func (p *Page) setFreeSpace(v uint16) { bx.PutU16At(p.Buf, offFreeSpace, v) }
func (p *Page) checksum() uint32      { return bx.U32At(p.Buf, offChecksum) }
func (p *Page) setChecksum(v uint32)  { bx.PutU32At(p.Buf, offChecksum, v) }

func (p *Page) computeChecksum() uint32 {
	return crc32.ChecksumIEEE(p.Buf[HeaderSize:])
}

// slotDirEnd is one past the last slot entry.
func (p *Page) slotDirEnd() int {
	return HeaderSize + p.SlotCount()*SlotSize
}

// FreeSpace reports the bytes available between the slot directory and
// the record data.
func (p *Page) FreeSpace() int {
	return int(p.freeSpace()) - p.slotDirEnd()
}

// ---- slots ----

func (p *Page) getSlot(i int) (Slot, error) {
	if i < 0 || i >= p.SlotCount() {
		return Slot{}, ErrBadSlot
	}
	o := HeaderSize + i*SlotSize
	return Slot{
		Offset: bx.U16At(p.Buf, o),
		Length: bx.U16At(p.Buf, o+2),
	}, nil
}

func (p *Page) putSlot(i int, s Slot) {
	o := HeaderSize + i*SlotSize
	bx.PutU16At(p.Buf, o, s.Offset)
	bx.PutU16At(p.Buf, o+2, s.Length)
}

// ---- records ----

// InsertRecord appends rec from the high end and a slot entry at the
// low end, returning the new slot id.
func (p *Page) InsertRecord(rec []byte) (int, error) {
	need := len(rec) + SlotSize
	if p.slotDirEnd()+need > int(p.freeSpace()) {
		return -1, ErrNoSpace
	}
	u := int(p.freeSpace()) - len(rec)
	copy(p.Buf[u:], rec)
	p.setFreeSpace(uint16(u))

	slot := p.SlotCount()
	p.setSlotCount(uint16(slot + 1))
	p.putSlot(slot, Slot{Offset: uint16(u), Length: uint16(len(rec))})
	return slot, nil
}

// ReadRecord returns the record bytes for slot, aliasing the page
// buffer. Tombstones read as ErrSlotDeleted.
func (p *Page) ReadRecord(slot int) ([]byte, error) {
	s, err := p.getSlot(slot)
	if err != nil {
		return nil, err
	}
	if s.Length == 0 {
		return nil, ErrSlotDeleted
	}
	start, end := int(s.Offset), int(s.Offset)+int(s.Length)
	if start < int(p.freeSpace()) || end > PageSize {
		return nil, ErrCorruption
	}
	return p.Buf[start:end], nil
}

// DeleteRecord marks slot as a tombstone. Deleting an already-deleted
// slot is a no-op. Space is not compacted.
func (p *Page) DeleteRecord(slot int) error {
	s, err := p.getSlot(slot)
	if err != nil {
		return err
	}
	if s.Length == 0 {
		return nil
	}
	p.putSlot(slot, Slot{Offset: 0, Length: 0})
	return nil
}

// IsLiveSlot reports whether slot holds a live record.
func (p *Page) IsLiveSlot(slot int) (bool, error) {
	s, err := p.getSlot(slot)
	if err != nil {
		return false, err
	}
	return s.Length != 0, nil
}
