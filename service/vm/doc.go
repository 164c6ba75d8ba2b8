// Package vm defines the physical page allocator and page-table mapper that
// the process core depends on. The core only uses these primitives; the
// memory sub-package provides a self-contained implementation backed by a
// fixed pool of in-process frames.
package vm
