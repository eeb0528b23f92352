package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T, pageID uint32) *Page {
	t.Helper()
	p, err := NewPage(make([]byte, PageSize), pageID)
	require.NoError(t, err)
	return p
}

func TestPage_InsertAndRead(t *testing.T) {
	p := newTestPage(t, 7)

	s0, err := p.InsertRecord([]byte("hello"))
	require.NoError(t, err)
	s1, err := p.InsertRecord([]byte("world!"))
	require.NoError(t, err)

	assert.Equal(t, 0, s0)
	assert.Equal(t, 1, s1)
	assert.Equal(t, 2, p.SlotCount())
	assert.Equal(t, uint32(7), p.PageID())

	got, err := p.ReadRecord(s0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	got, err = p.ReadRecord(s1)
	require.NoError(t, err)
	assert.Equal(t, []byte("world!"), got)
}

func TestPage_ReadBadSlot(t *testing.T) {
	p := newTestPage(t, 0)

	_, err := p.ReadRecord(0)
	assert.ErrorIs(t, err, ErrBadSlot)

	_, err = p.ReadRecord(-1)
	assert.ErrorIs(t, err, ErrBadSlot)
}

func TestPage_DeleteTombstone(t *testing.T) {
	p := newTestPage(t, 0)

	s, err := p.InsertRecord([]byte("doomed"))
	require.NoError(t, err)

	require.NoError(t, p.DeleteRecord(s))
	_, err = p.ReadRecord(s)
	assert.ErrorIs(t, err, ErrSlotDeleted)

	live, err := p.IsLiveSlot(s)
	require.NoError(t, err)
	assert.False(t, live)

	// Idempotent on an already-deleted slot.
	require.NoError(t, p.DeleteRecord(s))

	// Slot count still includes the tombstone.
	assert.Equal(t, 1, p.SlotCount())
}

func TestPage_FullRejectsInsert(t *testing.T) {
	p := newTestPage(t, 0)

	rec := make([]byte, 1000)
	for i := 0; i < 4; i++ {
		_, err := p.InsertRecord(rec)
		require.NoError(t, err)
	}
	// 4*1004 bytes used; another kilobyte cannot fit.
	_, err := p.InsertRecord(rec)
	assert.ErrorIs(t, err, ErrNoSpace)

	// A record that fits in the remainder still goes in.
	_, err = p.InsertRecord(make([]byte, 8))
	assert.NoError(t, err)
}

func TestPage_RoundTrip(t *testing.T) {
	p := newTestPage(t, 3)
	_, err := p.InsertRecord([]byte("first"))
	require.NoError(t, err)
	s, err := p.InsertRecord([]byte("second"))
	require.NoError(t, err)
	require.NoError(t, p.DeleteRecord(s))

	buf := make([]byte, PageSize)
	copy(buf, p.ToBytes())

	q, err := FromBytes(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, p.Buf, q.Buf)
	assert.Equal(t, 2, q.SlotCount())

	got, err := q.ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
	_, err = q.ReadRecord(1)
	assert.ErrorIs(t, err, ErrSlotDeleted)
}

func TestPage_FromBytesChecksumMismatch(t *testing.T) {
	p := newTestPage(t, 0)
	_, err := p.InsertRecord([]byte("payload"))
	require.NoError(t, err)

	buf := make([]byte, PageSize)
	copy(buf, p.ToBytes())
	buf[PageSize-1] ^= 0xFF

	_, err = FromBytes(buf, 0)
	assert.ErrorIs(t, err, ErrBadChecksum)
}

func TestPage_FromBytesZeroIsEmptyPage(t *testing.T) {
	p, err := FromBytes(make([]byte, PageSize), 9)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), p.PageID())
	assert.Equal(t, 0, p.SlotCount())
}

func TestPage_FromBytesWrongSize(t *testing.T) {
	_, err := FromBytes(make([]byte, 100), 0)
	assert.ErrorIs(t, err, ErrWrongSize)
}
