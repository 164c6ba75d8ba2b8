package vm

import (
	"errors"
)

// PageSize is the size of a physical frame and of a virtual page.
const PageSize = 4096

// Addr is a user virtual address.
type Addr uint64

// Unmapped marks a per-process shared-memory slot that has no mapping.
const Unmapped = ^Addr(0)

// PhysAddr is a physical frame address.
type PhysAddr uint64

// Perm holds page-table entry permission bits.
type Perm uint8

const (
	// PermWrite allows stores through the mapping.
	PermWrite Perm = 1 << iota
	// PermUser allows user-mode access.
	PermUser
)

var (
	// ErrOutOfMemory is returned when no physical frame is available.
	ErrOutOfMemory = errors.New("vm: out of memory")
	// ErrRemap is returned when mapping over an existing entry.
	ErrRemap = errors.New("vm: remap")
	// ErrNotMapped is returned when a virtual address has no entry.
	ErrNotMapped = errors.New("vm: not mapped")
)

// PageRoundUp rounds size up to the next page boundary.
func PageRoundUp(size uint64) Addr {
	return Addr((size + PageSize - 1) &^ (PageSize - 1))
}

// AddressSpace is an opaque per-process page table handle.
type AddressSpace interface {
	// ID returns a identifier unique among live address spaces.
	ID() int
}

// Service represents the physical page allocator and page-table mapper the
// process core consumes. Implementations must be safe for concurrent use.
type Service interface {
	// AllocPage returns a free physical frame; its content is unspecified.
	AllocPage() (PhysAddr, error)

	// FreePage returns a frame to the allocator.
	FreePage(pa PhysAddr)

	// ZeroPage clears a frame.
	ZeroPage(pa PhysAddr)

	// NewAddressSpace creates an address space with size bytes of zeroed user memory.
	NewAddressSpace(size uint64) (AddressSpace, error)

	// CopyAddressSpace duplicates the first size bytes of src into a new address space.
	CopyAddressSpace(src AddressSpace, size uint64) (AddressSpace, error)

	// FreeAddressSpace releases every private frame and the page table itself.
	FreeAddressSpace(as AddressSpace)

	// Grow resizes user memory from oldSize to newSize and returns the new size.
	Grow(as AddressSpace, oldSize, newSize uint64) (uint64, error)

	// Map installs a page-table entry for va pointing at pa.
	Map(as AddressSpace, va Addr, pa PhysAddr, perm Perm) error

	// Unmap clears the entry for va without freeing the frame.
	Unmap(as AddressSpace, va Addr) error

	// Lookup resolves va to its frame.
	Lookup(as AddressSpace, va Addr) (PhysAddr, bool)

	// Activate loads as on the given CPU.
	Activate(cpu int, as AddressSpace)

	// Copyout writes data into as at va.
	Copyout(as AddressSpace, va Addr, data []byte) error

	// Copyin reads len(buf) bytes from as at va.
	Copyin(as AddressSpace, va Addr, buf []byte) error
}
