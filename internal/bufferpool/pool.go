package bufferpool

import (
	"errors"

	"github.com/sasha-s/go-deadlock"

	"github.com/moonsql/moonsql/internal/storage"
)

var (
	DefaultCapacity = 64

	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")
)

// PageKey identifies a cached page across tables.
type PageKey struct {
	Table  string
	PageID uint32
}

// PageHandle is a pinned reference to a frame. Callers must Unpin it
// before the statement ends.
type PageHandle struct {
	Key  PageKey
	Page *storage.Page
}

type Frame struct {
	Key   PageKey
	Page  *storage.Page
	Dirty bool
	Pin   int32
}

// Stats are cumulative counters since the pool was created.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
	Policy    string  `json:"policy"`
}

// Pool is a bounded cache of pages keyed by (table, page_id). A dirty
// victim is written back before its frame is reused.
type Pool struct {
	fm storage.FileManager

	mu        deadlock.Mutex
	frames    []*Frame         // len == capacity, nil == free slot
	pageTable map[PageKey]int  // key -> frame index
	policy    string
	replacer  Replacer

	hits      uint64
	misses    uint64
	evictions uint64
}

func NewPool(fm storage.FileManager, capacity int, policy string) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if policy != "fifo" {
		policy = "lru"
	}
	return &Pool{
		fm:        fm,
		frames:    make([]*Frame, capacity),
		pageTable: make(map[PageKey]int),
		policy:    policy,
		replacer:  NewReplacer(policy),
	}
}

// Get returns a pinned handle on the page, fetching it through the
// file manager on a miss.
func (p *Pool) Get(table string, pageID uint32) (*PageHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := PageKey{Table: table, PageID: pageID}
	if idx, ok := p.pageTable[key]; ok {
		f := p.frames[idx]
		wasZero := f.Pin == 0
		f.Pin++
		p.hits++
		p.replacer.RecordAccess(idx)
		if wasZero {
			p.replacer.SetEvictable(idx, false)
		}
		return &PageHandle{Key: key, Page: f.Page}, nil
	}

	p.misses++
	idx, err := p.freeFrame()
	if err != nil {
		return nil, err
	}

	page, err := p.loadPage(key)
	if err != nil {
		p.releaseFrame(idx)
		return nil, err
	}
	p.installFrame(idx, key, page, false)
	return &PageHandle{Key: key, Page: page}, nil
}

// NewPage allocates a fresh page for table via the file manager and
// returns a pinned handle already marked dirty.
func (p *Pool) NewPage(table string) (uint32, *PageHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.freeFrame()
	if err != nil {
		return 0, nil, err
	}

	pageID, err := p.fm.AllocatePage(table)
	if err != nil {
		p.releaseFrame(idx)
		return 0, nil, err
	}

	page, err := storage.NewPage(make([]byte, storage.PageSize), pageID)
	if err != nil {
		p.releaseFrame(idx)
		return 0, nil, err
	}

	key := PageKey{Table: table, PageID: pageID}
	p.installFrame(idx, key, page, true)
	return pageID, &PageHandle{Key: key, Page: page}, nil
}

// MarkDirty flags the handled page as modified.
func (p *Pool) MarkDirty(h *PageHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[h.Key]; ok {
		p.frames[idx].Dirty = true
	}
}

// Unpin releases one pin on the handled page, optionally marking it
// dirty first.
func (p *Pool) Unpin(h *PageHandle, dirty bool) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[h.Key]
	if !ok {
		return
	}
	f := p.frames[idx]
	if dirty {
		f.Dirty = true
	}
	if f.Pin > 0 {
		f.Pin--
		if f.Pin == 0 {
			p.replacer.SetEvictable(idx, true)
		}
	}
}

// FlushAll writes every dirty page back and clears the dirty bits.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f == nil || !f.Dirty {
			continue
		}
		if err := p.fm.WritePage(f.Key.Table, f.Key.PageID, f.Page.ToBytes()); err != nil {
			return err
		}
		f.Dirty = false
	}
	return nil
}

// DropTable evicts every cached page of table without writing it back;
// the caller has already decided the table's bytes are garbage.
func (p *Pool) DropTable(table string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, idx := range p.pageTable {
		if key.Table != table {
			continue
		}
		p.frames[idx] = nil
		delete(p.pageTable, key)
		p.replacer.Remove(idx)
	}
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Hits:      p.hits,
		Misses:    p.misses,
		Evictions: p.evictions,
		Policy:    p.policy,
	}
	if total := p.hits + p.misses; total > 0 {
		s.HitRatio = float64(p.hits) / float64(total)
	}
	return s
}

// PinnedCount reports frames with a nonzero pin count; it must be zero
// between statements.
func (p *Pool) PinnedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, f := range p.frames {
		if f != nil && f.Pin > 0 {
			n++
		}
	}
	return n
}

// ---- internals (callers hold p.mu) ----

// freeFrame returns the index of an empty frame, evicting a victim if
// needed. The frame is reserved for the caller until installFrame or
// releaseFrame.
func (p *Pool) freeFrame() (int, error) {
	for i, f := range p.frames {
		if f == nil {
			return i, nil
		}
	}

	idx, ok := p.replacer.Evict()
	if !ok {
		return -1, ErrNoFreeFrame
	}
	victim := p.frames[idx]
	if victim == nil || victim.Pin != 0 {
		return -1, ErrNoFreeFrame
	}
	if victim.Dirty {
		if err := p.fm.WritePage(victim.Key.Table, victim.Key.PageID, victim.Page.ToBytes()); err != nil {
			p.replacer.RecordAccess(idx)
			p.replacer.SetEvictable(idx, true)
			return -1, err
		}
	}
	delete(p.pageTable, victim.Key)
	p.frames[idx] = nil
	p.evictions++
	return idx, nil
}

func (p *Pool) installFrame(idx int, key PageKey, page *storage.Page, dirty bool) {
	p.frames[idx] = &Frame{Key: key, Page: page, Dirty: dirty, Pin: 1}
	p.pageTable[key] = idx
	p.replacer.RecordAccess(idx)
	p.replacer.SetEvictable(idx, false)
}

func (p *Pool) releaseFrame(idx int) {
	p.frames[idx] = nil
	p.replacer.Remove(idx)
}

func (p *Pool) loadPage(key PageKey) (*storage.Page, error) {
	buf := make([]byte, storage.PageSize)
	if err := p.fm.ReadPage(key.Table, key.PageID, buf); err != nil {
		return nil, err
	}
	return storage.FromBytes(buf, key.PageID)
}
