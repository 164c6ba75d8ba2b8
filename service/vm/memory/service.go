package memory

import (
	"fmt"
	"sync"

	"github.com/viant/kcore/service/vm"
)

const (
	junkAlloc = 5
	junkFree  = 1
)

// Config for memory backed vm service
type Config struct {
	Frames int `json:"frames" yaml:"frames"`
}

// DefaultConfig returns a pool of 1024 frames (4MB)
func DefaultConfig() Config {
	return Config{Frames: 1024}
}

type entry struct {
	pa    vm.PhysAddr
	perm  vm.Perm
	owned bool
}

type space struct {
	id    int
	pages map[vm.Addr]*entry
}

// ID implements vm.AddressSpace
func (s *space) ID() int { return s.id }

// Service implements vm.Service over a fixed pool of in-process frames.
type Service struct {
	mu     sync.Mutex
	frames [][]byte
	free   []int
	inUse  []bool
	spaces int
	active map[int]int
	config Config
}

// New creates a vm service
func New(config Config) *Service {
	if config.Frames <= 0 {
		config = DefaultConfig()
	}
	ret := &Service{
		frames: make([][]byte, config.Frames),
		inUse:  make([]bool, config.Frames),
		active: map[int]int{},
		config: config,
	}
	for i := config.Frames - 1; i >= 0; i-- {
		ret.frames[i] = make([]byte, vm.PageSize)
		ret.free = append(ret.free, i)
	}
	return ret
}

// FreeFrames returns number of unallocated frames
func (s *Service) FreeFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.free)
}

// ActiveSpace returns the address space id loaded on cpu, or -1.
func (s *Service) ActiveSpace(cpu int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.active[cpu]; ok {
		return id
	}
	return -1
}

func (s *Service) AllocPage() (vm.PhysAddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocPage()
}

func (s *Service) allocPage() (vm.PhysAddr, error) {
	if len(s.free) == 0 {
		return 0, vm.ErrOutOfMemory
	}
	idx := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.inUse[idx] = true
	fill(s.frames[idx], junkAlloc)
	return vm.PhysAddr(idx+1) * vm.PageSize, nil
}

func (s *Service) FreePage(pa vm.PhysAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freePage(pa)
}

func (s *Service) freePage(pa vm.PhysAddr) {
	idx, ok := s.index(pa)
	if !ok || !s.inUse[idx] {
		panic(fmt.Sprintf("kfree: invalid frame %#x", uint64(pa)))
	}
	fill(s.frames[idx], junkFree)
	s.inUse[idx] = false
	s.free = append(s.free, idx)
}

func (s *Service) ZeroPage(pa vm.PhysAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame := s.frame(pa); frame != nil {
		fill(frame, 0)
	}
}

func (s *Service) NewAddressSpace(size uint64) (vm.AddressSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := s.newSpace()
	if _, err := s.grow(ret, 0, size); err != nil {
		s.freeSpace(ret)
		return nil, err
	}
	return ret, nil
}

func (s *Service) CopyAddressSpace(src vm.AddressSpace, size uint64) (vm.AddressSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := src.(*space)
	ret := s.newSpace()
	for va := vm.Addr(0); va < vm.Addr(size); va += vm.PageSize {
		e, ok := from.pages[va]
		if !ok {
			s.freeSpace(ret)
			return nil, fmt.Errorf("copy %#x: %w", uint64(va), vm.ErrNotMapped)
		}
		pa, err := s.allocPage()
		if err != nil {
			s.freeSpace(ret)
			return nil, err
		}
		copy(s.frame(pa), s.frame(e.pa))
		ret.pages[va] = &entry{pa: pa, perm: e.perm, owned: true}
	}
	return ret, nil
}

func (s *Service) FreeAddressSpace(as vm.AddressSpace) {
	if as == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeSpace(as.(*space))
}

func (s *Service) Grow(as vm.AddressSpace, oldSize, newSize uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grow(as.(*space), oldSize, newSize)
}

func (s *Service) grow(sp *space, oldSize, newSize uint64) (uint64, error) {
	if newSize >= oldSize {
		for va := vm.PageRoundUp(oldSize); va < vm.Addr(newSize); va += vm.PageSize {
			if _, ok := sp.pages[va]; ok {
				s.shrink(sp, uint64(va), oldSize)
				return oldSize, fmt.Errorf("grow %#x: %w", uint64(va), vm.ErrRemap)
			}
			pa, err := s.allocPage()
			if err != nil {
				s.shrink(sp, uint64(va), oldSize)
				return oldSize, err
			}
			fill(s.frame(pa), 0)
			sp.pages[va] = &entry{pa: pa, perm: vm.PermWrite | vm.PermUser, owned: true}
		}
		return newSize, nil
	}
	s.shrink(sp, oldSize, newSize)
	return newSize, nil
}

func (s *Service) shrink(sp *space, oldSize, newSize uint64) {
	for va := vm.PageRoundUp(newSize); va < vm.PageRoundUp(oldSize); va += vm.PageSize {
		if e, ok := sp.pages[va]; ok && e.owned {
			s.freePage(e.pa)
			delete(sp.pages, va)
		}
	}
}

func (s *Service) Map(as vm.AddressSpace, va vm.Addr, pa vm.PhysAddr, perm vm.Perm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := as.(*space)
	if _, ok := sp.pages[va]; ok {
		return fmt.Errorf("map %#x: %w", uint64(va), vm.ErrRemap)
	}
	sp.pages[va] = &entry{pa: pa, perm: perm}
	return nil
}

func (s *Service) Unmap(as vm.AddressSpace, va vm.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := as.(*space)
	if _, ok := sp.pages[va]; !ok {
		return fmt.Errorf("unmap %#x: %w", uint64(va), vm.ErrNotMapped)
	}
	delete(sp.pages, va)
	return nil
}

func (s *Service) Lookup(as vm.AddressSpace, va vm.Addr) (vm.PhysAddr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := as.(*space).pages[va&^(vm.PageSize-1)]
	if !ok {
		return 0, false
	}
	return e.pa + vm.PhysAddr(va&(vm.PageSize-1)), true
}

func (s *Service) Activate(cpu int, as vm.AddressSpace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if as == nil {
		delete(s.active, cpu)
		return
	}
	s.active[cpu] = as.ID()
}

func (s *Service) Copyout(as vm.AddressSpace, va vm.Addr, data []byte) error {
	return s.walk(as, va, len(data), func(frame []byte, offset int) int {
		return copy(frame, data[offset:])
	})
}

func (s *Service) Copyin(as vm.AddressSpace, va vm.Addr, buf []byte) error {
	return s.walk(as, va, len(buf), func(frame []byte, offset int) int {
		return copy(buf[offset:], frame)
	})
}

func (s *Service) walk(as vm.AddressSpace, va vm.Addr, n int, fn func(frame []byte, offset int) int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := as.(*space)
	for offset := 0; offset < n; {
		base := va &^ (vm.PageSize - 1)
		e, ok := sp.pages[base]
		if !ok || e.perm&vm.PermUser == 0 {
			return fmt.Errorf("access %#x: %w", uint64(va), vm.ErrNotMapped)
		}
		frame := s.frame(e.pa)[va-base:]
		copied := fn(frame, offset)
		offset += copied
		va += vm.Addr(copied)
	}
	return nil
}

func (s *Service) newSpace() *space {
	s.spaces++
	return &space{id: s.spaces, pages: map[vm.Addr]*entry{}}
}

func (s *Service) freeSpace(sp *space) {
	for va, e := range sp.pages {
		if e.owned {
			s.freePage(e.pa)
		}
		delete(sp.pages, va)
	}
}

func (s *Service) index(pa vm.PhysAddr) (int, bool) {
	if pa == 0 || pa%vm.PageSize != 0 {
		return 0, false
	}
	idx := int(pa/vm.PageSize) - 1
	return idx, idx < len(s.frames)
}

func (s *Service) frame(pa vm.PhysAddr) []byte {
	idx, ok := s.index(pa &^ (vm.PageSize - 1))
	if !ok {
		return nil
	}
	return s.frames[idx]
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
