// Package ram is the fixed guest-RAM backing store for the soft-MMU.
package ram

/*
 * renode-min - Guest RAM backing store
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Memory is a single host-backed block of guest RAM. The backing store is
// an anonymous mmap so that a TLB entry's addend is a real delta into host
// memory rather than a simulated offset table.
type Memory struct {
	buf  []byte // mmap'd backing store, len == size
	size uint64 // usable size in bytes
}

// New allocates and mmaps size bytes of guest RAM.
func New(size uint64) (*Memory, error) {
	if size == 0 {
		return nil, fmt.Errorf("ram: zero size")
	}
	buf, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("ram: mmap %d bytes: %w", size, err)
	}
	return &Memory{buf: buf, size: size}, nil
}

// Close unmaps the backing store.
func (m *Memory) Close() error {
	if m.buf == nil {
		return nil
	}
	err := unix.Munmap(m.buf)
	m.buf = nil
	return err
}

// Size returns the size of the backing store in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

// Bytes returns the raw backing slice. A RAM TLB entry's addend is defined
// relative to this slice: hostOffset = int64(guestAddr) + addend indexes
// directly into it.
func (m *Memory) Bytes() []byte {
	return m.buf
}

// InRange reports whether [offset, offset+width) lies entirely within the
// backing store.
func (m *Memory) InRange(offset uint64, width int) bool {
	end := offset + uint64(width)
	return end >= offset && end <= m.size
}

// Load reads width bytes (1, 2, 4 or 8) at host offset in little-endian order.
// The caller is responsible for bounds checking via InRange.
func (m *Memory) Load(offset uint64, width int) uint64 {
	b := m.buf[offset : offset+uint64(width)]
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		panic(fmt.Sprintf("ram: unsupported width %d", width))
	}
}

// Store writes width bytes (1, 2, 4 or 8) at host offset in little-endian order.
func (m *Memory) Store(offset uint64, width int, val uint64) {
	b := m.buf[offset : offset+uint64(width)]
	switch width {
	case 1:
		b[0] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(val))
	case 8:
		binary.LittleEndian.PutUint64(b, val)
	default:
		panic(fmt.Sprintf("ram: unsupported width %d", width))
	}
}
