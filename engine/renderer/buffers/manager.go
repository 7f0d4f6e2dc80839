// Package buffers implements the pool of per-frame uniform buffers shared
// between the CPU timeline and the GPU.
package buffers

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/livewall/engine/containers"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"golang.org/x/sync/semaphore"
)

// DefaultInFlightCount is the number of frames that may be in flight at once.
const DefaultInFlightCount = 3

type SlotState int

const (
	SlotFree SlotState = iota
	SlotAcquired
	SlotSubmitted
)

func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotAcquired:
		return "acquired"
	case SlotSubmitted:
		return "submitted"
	}
	return "unknown"
}

// Slot is one per-frame resource. Its buffer may only be written while the
// slot is held in the Acquired state.
type Slot struct {
	index  int
	buffer metadata.Buffer
	owner  *Manager
}

func (s *Slot) Index() int {
	return s.index
}

func (s *Slot) Buffer() metadata.Buffer {
	return s.buffer
}

// Manager hands out slots to the frame loop. A weighted semaphore counts the
// free slots and a FIFO holds which ones they are, so Acquire returns the
// slots in the order the GPU released them.
type Manager struct {
	sem *semaphore.Weighted

	mu           sync.Mutex
	slots        []*Slot
	states       []SlotState
	free         *containers.RingQueue[*Slot]
	acquisitions uint64
}

// NewManager creates count slots, each backed by the buffer returned from create.
func NewManager(count int, create func(index int) (metadata.Buffer, error)) (*Manager, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: frame pool needs at least one slot, got %d", core.ErrUnsupportedConfig, count)
	}

	m := &Manager{
		sem:    semaphore.NewWeighted(int64(count)),
		slots:  make([]*Slot, count),
		states: make([]SlotState, count),
		free:   containers.NewRingQueue[*Slot](count),
	}
	for i := 0; i < count; i++ {
		buf, err := create(i)
		if err != nil {
			return nil, fmt.Errorf("failed to create frame buffer %d: %w", i, err)
		}
		slot := &Slot{index: i, buffer: buf, owner: m}
		m.slots[i] = slot
		m.states[i] = SlotFree
		if err := m.free.Enqueue(slot); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Acquire blocks until a slot is free and marks it Acquired. It only fails
// when ctx is done.
func (m *Manager) Acquire(ctx context.Context) (*Slot, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	slot, err := m.free.Dequeue()
	if err != nil {
		// a permit without a free slot means the bookkeeping is broken
		m.sem.Release(1)
		return nil, fmt.Errorf("%w: permit granted with empty free list", core.ErrInvalidSlotState)
	}
	m.states[slot.index] = SlotAcquired
	m.acquisitions++
	return slot, nil
}

// Submit records that the slot's buffer was handed to the GPU.
func (m *Manager) Submit(slot *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(slot, SlotAcquired, SlotSubmitted); err != nil {
		return err
	}
	return nil
}

// Release is called once the GPU finished with the slot. It is safe to call
// from any goroutine.
func (m *Manager) Release(slot *Slot) error {
	return m.markFree(slot, SlotSubmitted)
}

// Abandon returns a slot that was acquired but never submitted.
func (m *Manager) Abandon(slot *Slot) error {
	return m.markFree(slot, SlotAcquired)
}

func (m *Manager) markFree(slot *Slot, from SlotState) error {
	m.mu.Lock()
	if err := m.transition(slot, from, SlotFree); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := m.free.Enqueue(slot); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.sem.Release(1)
	return nil
}

func (m *Manager) transition(slot *Slot, from, to SlotState) error {
	if slot == nil || slot.owner != m {
		return core.ErrSlotNotOwned
	}
	if current := m.states[slot.index]; current != from {
		return fmt.Errorf("%w: slot %d is %s, expected %s", core.ErrInvalidSlotState, slot.index, current, from)
	}
	m.states[slot.index] = to
	return nil
}

func (m *Manager) Count() int {
	return len(m.slots)
}

func (m *Manager) State(index int) SlotState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[index]
}

// InFlight returns the number of slots that are not free.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots) - m.free.Len()
}

// Acquisitions returns how many times Acquire succeeded.
func (m *Manager) Acquisitions() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquisitions
}
