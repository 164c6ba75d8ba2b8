package shm

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/service/vm"
)

// FreeID marks an unused pool slot
const FreeID = -1

var (
	ErrPoolFull      = errors.New("shm: pool full")
	ErrAlreadyMapped = errors.New("shm: already mapped")
	ErrNotMapped     = errors.New("shm: not mapped")
	ErrInvalidID     = errors.New("shm: invalid id")
)

// Slot is a shared page pool entry
type Slot struct {
	ID   int         `json:"id"`
	Refs int         `json:"refs"`
	Page vm.PhysAddr `json:"page"`
}

// Service represents the shared memory pool
type Service struct {
	mu    sync.Mutex
	slots [proc.MaxSharedPages]Slot
	vm    vm.Service
}

// New creates an empty pool
func New(vmService vm.Service) *Service {
	ret := &Service{vm: vmService}
	for i := range ret.slots {
		ret.slots[i].ID = FreeID
	}
	return ret
}

// Open maps the page identified by id into cur and returns its address.
func (s *Service) Open(cur *proc.Process, id int) (vm.Addr, error) {
	if id < 0 {
		return 0, fmt.Errorf("open %d: %w", id, ErrInvalidID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.index(id); idx != -1 {
		if cur.Shared[idx] != vm.Unmapped {
			return 0, fmt.Errorf("open %d in %d: %w", id, cur.PID, ErrAlreadyMapped)
		}
		va, err := s.attach(cur, idx, s.slots[idx].Page)
		if err != nil {
			return 0, err
		}
		s.slots[idx].Refs++
		return va, nil
	}

	idx := s.index(FreeID)
	if idx == -1 {
		return 0, fmt.Errorf("open %d: %w", id, ErrPoolFull)
	}
	page, err := s.vm.AllocPage()
	if err != nil {
		return 0, fmt.Errorf("open %d: %w", id, err)
	}
	s.vm.ZeroPage(page)
	va, err := s.attach(cur, idx, page)
	if err != nil {
		s.vm.FreePage(page)
		return 0, err
	}
	s.slots[idx] = Slot{ID: id, Refs: 1, Page: page}
	return va, nil
}

// Close unmaps the page identified by id from cur and frees it with the last reference.
func (s *Service) Close(cur *proc.Process, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	if id >= 0 {
		idx = s.index(id)
	}
	if idx == -1 || cur.Shared[idx] == vm.Unmapped {
		return fmt.Errorf("close %d in %d: %w", id, cur.PID, ErrNotMapped)
	}
	s.detach(cur, idx)
	return nil
}

// Detach closes every shared mapping of an exiting process
func (s *Service) Detach(cur *proc.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx := range cur.Shared {
		if cur.Shared[idx] != vm.Unmapped && s.slots[idx].ID != FreeID {
			s.detach(cur, idx)
		}
	}
}

// Slots returns a copy of the pool
func (s *Service) Slots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Slot, len(s.slots))
	copy(ret, s.slots[:])
	return ret
}

func (s *Service) index(id int) int {
	for i := range s.slots {
		if s.slots[i].ID == id {
			return i
		}
	}
	return -1
}

// attach maps page at the first free page boundary above the process size.
func (s *Service) attach(cur *proc.Process, idx int, page vm.PhysAddr) (vm.Addr, error) {
	va := vm.PageRoundUp(cur.Size)
	for {
		if _, ok := s.vm.Lookup(cur.Space, va); !ok {
			break
		}
		va += vm.PageSize
	}
	if err := s.vm.Map(cur.Space, va, page, vm.PermWrite|vm.PermUser); err != nil {
		return 0, fmt.Errorf("failed to map shared page %d: %w", idx, err)
	}
	cur.Shared[idx] = va
	return va, nil
}

func (s *Service) detach(cur *proc.Process, idx int) {
	if err := s.vm.Unmap(cur.Space, cur.Shared[idx]); err != nil {
		log.Printf("shm: %d: %v", cur.PID, err)
	}
	cur.Shared[idx] = vm.Unmapped
	slot := &s.slots[idx]
	slot.Refs--
	if slot.Refs == 0 {
		s.vm.FreePage(slot.Page)
		*slot = Slot{ID: FreeID}
	}
}
