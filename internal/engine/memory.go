// SPDX-License-Identifier: MIT
package engine

import "sync"

// SliceMemory is a growable in-process linear memory backed by a float slice.
// Allocations are bump-allocated and never reused, which mirrors how a simple
// engine module grows its heap.
type SliceMemory struct {
	mu   sync.Mutex
	data []float32
}

// NewSliceMemory returns a memory with the given initial size in elements.
// Element 0 is reserved so that a zero Ptr never names a live allocation.
func NewSliceMemory(elements int) *SliceMemory {
	return &SliceMemory{data: make([]float32, max(elements, 1))[:1]}
}

// Alloc reserves n elements and returns the byte offset of the region.
func (m *SliceMemory) Alloc(n int) Ptr {
	m.mu.Lock()
	defer m.mu.Unlock()

	off := len(m.data)
	if cap(m.data)-off < n {
		grown := make([]float32, off, 2*cap(m.data)+n)
		copy(grown, m.data)
		m.data = grown
	}
	m.data = m.data[:off+n]
	clear(m.data[off:])
	return Ptr(off * 4)
}

// Slice returns the live elements of a region. Callers inside the module use
// it to compute in place; it must not be retained across Alloc calls.
func (m *SliceMemory) Slice(p Ptr, n int) []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := int(p.Index())
	if i > len(m.data) {
		return nil
	}
	return m.data[i:min(i+n, len(m.data))]
}

// Size returns the number of allocated elements.
func (m *SliceMemory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *SliceMemory) Read(index uint32, dst []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(index) >= len(m.data) {
		return 0
	}
	return copy(dst, m.data[index:])
}

func (m *SliceMemory) Write(index uint32, src []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(index) >= len(m.data) {
		return 0
	}
	return copy(m.data[index:], src)
}

var _ Memory = (*SliceMemory)(nil)
