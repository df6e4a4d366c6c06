// Package tlb is the direct-mapped TLB table (C2): a fixed-size,
// per-MMU-index array mapping guest page number to host addend and flags.
// It carries no policy of its own — install/probe/flush only, exactly as
// spec.md §4.1 describes; the fast/slow path and refill policy live in the
// softmmu and pmp packages.
package tlb

/*
 * renode-min - TLB table
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

const (
	PageBits = 12             // guest page size is 2^PageBits bytes
	PageSize = 1 << PageBits  // 4KiB guest pages
	PageMask = PageSize - 1   // low bits within a page
)

// pageAddrMask clears the low PageBits of an address, leaving the page
// number in place (unlike the original C source we don't shift it down;
// keeping it in place lets tag comparison stay a single mask+compare).
const pageAddrMask = ^uint64(PageMask)

// Flag bits live in an entry's low PageBits, which are always zero for a
// bare page-aligned address. FlagOneShot combines with either a RAM or an
// MMIO entry; FlagMMIO is tested by exact equality of the remaining low
// bits (mirroring TLB_MMIO in the original softmmu_template.h); FlagInvalid
// guarantees a mismatch against any real address (TLB_INVALID_MASK).
const (
	FlagOneShot uint64 = 1 << 0
	FlagInvalid uint64 = 1 << 1
	FlagMMIO    uint64 = 1 << 2
)

// NeverMatch is the reset tag value for an empty/flushed slot: an
// all-ones address whose page part can never equal a real masked address.
const NeverMatch uint64 = ^uint64(0)

// AccessKind selects which TLB column (addr_read/addr_write/addr_code) and
// which access_type is reported to tlb_fill, matching spec.md §6.
type AccessKind int

const (
	Read AccessKind = iota
	Write
	Code
)

// Entry is one (mmu_idx, page slot) TLB slot. For a RAM page, Addend is the
// signed delta such that hostOffset = int64(guestAddr) + Addend indexes
// directly into the backing ram.Memory slice. For an MMIO page, IOIndex
// selects the I/O memory region table slot (hostcall.IOIndexNotDirty is a
// reserved value).
type Entry struct {
	AddrRead  uint64
	AddrWrite uint64
	AddrCode  uint64
	Addend    int64
	IOIndex   uint32
}

func newEntry() Entry {
	return Entry{AddrRead: NeverMatch, AddrWrite: NeverMatch, AddrCode: NeverMatch}
}

// tag returns the raw (un-masked-for-one-shot) tag for the given access kind.
func (e *Entry) tag(kind AccessKind) uint64 {
	switch kind {
	case Write:
		return e.AddrWrite
	case Code:
		return e.AddrCode
	default:
		return e.AddrRead
	}
}

func (e *Entry) setTag(kind AccessKind, v uint64) {
	switch kind {
	case Write:
		e.AddrWrite = v
	case Code:
		e.AddrCode = v
	default:
		e.AddrRead = v
	}
}

// Table is the fixed [mmu_idx][page_slot] array. Size must be a power of
// two; page_slot = (addr >> PageBits) & (Size-1), matching spec.md §4.1.
type Table struct {
	entries [][]Entry
	size    uint32
}

// New allocates a Table with numMMUIdx columns of size entries each (size
// must be a power of two).
func New(numMMUIdx int, size uint32) *Table {
	if size == 0 || (size&(size-1)) != 0 {
		panic("tlb: size must be a power of two")
	}
	t := &Table{entries: make([][]Entry, numMMUIdx), size: size}
	for i := range t.entries {
		col := make([]Entry, size)
		for j := range col {
			col[j] = newEntry()
		}
		t.entries[i] = col
	}
	return t
}

func (t *Table) slot(addr uint64) uint32 {
	return uint32(addr>>PageBits) & (t.size - 1)
}

// Raw returns a pointer to the entry occupying addr's slot in mmuIdx,
// without regard to whether it actually matches addr. Callers use Match to
// test the returned entry.
func (t *Table) Raw(mmuIdx int, addr uint64) *Entry {
	return &t.entries[mmuIdx][t.slot(addr)]
}

// Match reports whether addr matches the entry's tag for kind, per spec.md
// §4.2 step 4: "the high-order bits of addr equal the high-order bits of
// the tag, allowing TLB_INVALID_MASK". The one-shot bit is ignored here —
// callers must pre-flush one-shot entries before calling Match (see
// PreFlushOneShot).
func Match(e *Entry, kind AccessKind, addr uint64) bool {
	tag := e.tag(kind) &^ FlagOneShot
	return (addr & pageAddrMask) == (tag & (pageAddrMask | FlagInvalid))
}

// IsMMIO reports whether the (one-shot-masked) tag is an MMIO entry.
func IsMMIO(e *Entry, kind AccessKind) bool {
	tag := e.tag(kind) &^ FlagOneShot
	return (tag &^ pageAddrMask) == FlagMMIO
}

// IsOneShot reports whether the raw tag carries the one-shot bit.
func IsOneShot(e *Entry, kind AccessKind) bool {
	tag := e.tag(kind)
	return tag != NeverMatch && (tag&FlagOneShot) != 0
}

// PreFlushOneShot implements spec.md §4.2 step 3: if the entry occupying
// addr's slot is tagged one-shot, invalidate the whole slot before the
// caller re-probes. Returns true if a flush happened.
func (t *Table) PreFlushOneShot(mmuIdx int, addr uint64, kind AccessKind) bool {
	e := t.Raw(mmuIdx, addr)
	if IsOneShot(e, kind) {
		*e = newEntry()
		return true
	}
	return false
}

// InstallRAM installs a RAM entry for mmuIdx's column covering addr's page,
// readable/writable/executable according to the flags, with the given
// addend. oneShot forces the entry to self-invalidate on next probe (used
// for PMP/MPU sub-page regions).
func (t *Table) InstallRAM(mmuIdx int, addr uint64, addend int64, readable, writable, code, oneShot bool) {
	e := t.Raw(mmuIdx, addr)
	page := addr & pageAddrMask
	tag := page
	if oneShot {
		tag |= FlagOneShot
	}
	if readable {
		e.AddrRead = tag
	} else {
		e.AddrRead = NeverMatch
	}
	if writable {
		e.AddrWrite = tag
	} else {
		e.AddrWrite = NeverMatch
	}
	if code {
		e.AddrCode = tag
	} else {
		e.AddrCode = NeverMatch
	}
	e.Addend = addend
}

// InstallMMIO installs an MMIO entry for mmuIdx's column covering addr's
// page, dispatching through I/O table slot ioIndex.
func (t *Table) InstallMMIO(mmuIdx int, addr uint64, ioIndex uint32, readable, writable, code, oneShot bool) {
	e := t.Raw(mmuIdx, addr)
	page := addr & pageAddrMask
	tag := page | FlagMMIO
	if oneShot {
		tag |= FlagOneShot
	}
	if readable {
		e.AddrRead = tag
	} else {
		e.AddrRead = NeverMatch
	}
	if writable {
		e.AddrWrite = tag
	} else {
		e.AddrWrite = NeverMatch
	}
	if code {
		e.AddrCode = tag
	} else {
		e.AddrCode = NeverMatch
	}
	e.IOIndex = ioIndex
}

// FlushPage invalidates addr's slot across every MMU index, matching
// tlb_flush_page.
func (t *Table) FlushPage(addr uint64) {
	for i := range t.entries {
		*t.Raw(i, addr) = newEntry()
	}
}

// FlushAll invalidates every entry in every MMU index, matching tlb_flush.
// pmp_update_rule calls this on every CSR mutation (spec.md §4.3).
func (t *Table) FlushAll() {
	for i := range t.entries {
		for j := range t.entries[i] {
			t.entries[i][j] = newEntry()
		}
	}
}

// Size returns the number of slots per MMU index.
func (t *Table) Size() uint32 { return t.size }
