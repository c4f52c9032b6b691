package memory

import (
	"fmt"
	"sync"
	"time"
)

// Tracker records native Mat allocations made on behalf of requests so the
// transport can report outstanding OpenCV memory. It implements
// safe.MemoryTracker.
type Tracker struct {
	allocations map[uint64]*AllocationRecord
	mu          sync.RWMutex
	stats       Stats
}

type AllocationRecord struct {
	Tag       string
	CreatedAt time.Time
	Size      int64
}

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	PeakActive     int64
	MaxAllowed     int64
	// Reserved is held by Reserve calls that have not been released yet.
	Reserved int64
}

// NewTracker limits outstanding allocations to maxBytes; zero disables the
// limit.
func NewTracker(maxBytes int64) *Tracker {
	return &Tracker{
		allocations: make(map[uint64]*AllocationRecord),
		stats: Stats{
			MaxAllowed: maxBytes,
		},
	}
}

func (t *Tracker) TrackAllocation(id uint64, size int64, tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.allocations[id]; exists {
		return
	}

	t.allocations[id] = &AllocationRecord{
		Tag:       tag,
		CreatedAt: time.Now(),
		Size:      size,
	}
	t.stats.TotalAllocated += size
	t.stats.ActiveMats++
	if t.stats.ActiveMats > t.stats.PeakActive {
		t.stats.PeakActive = t.stats.ActiveMats
	}
}

func (t *Tracker) TrackDeallocation(id uint64, tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.allocations[id]
	if !exists {
		return
	}

	delete(t.allocations, id)
	t.stats.TotalReleased += record.Size
	t.stats.ActiveMats--
}

// InUse returns the bytes currently held by tracked Mats.
func (t *Tracker) InUse() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats.TotalAllocated - t.stats.TotalReleased
}

// Reserve holds size bytes against the limit until release is called, so
// concurrent callers cannot all pass the check before any of them allocates.
// It fails when in-use plus reserved bytes would exceed the limit. release is
// safe to call more than once.
func (t *Tracker) Reserve(size int64) (release func(), err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stats.MaxAllowed > 0 {
		inUse := t.stats.TotalAllocated - t.stats.TotalReleased
		if inUse+t.stats.Reserved+size > t.stats.MaxAllowed {
			return nil, fmt.Errorf("memory limit exceeded: %d bytes in use, %d reserved, %d requested, limit %d",
				inUse, t.stats.Reserved, size, t.stats.MaxAllowed)
		}
	}

	t.stats.Reserved += size
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.stats.Reserved -= size
		})
	}, nil
}

func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// Outstanding lists live allocations grouped by tag.
func (t *Tracker) Outstanding() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byTag := make(map[string]int)
	for _, record := range t.allocations {
		byTag[record.Tag]++
	}
	return byTag
}
