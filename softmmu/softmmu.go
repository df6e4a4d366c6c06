// Package softmmu is the guest memory access engine (C3) and global memory
// lock (C5): TLB-backed load/store for widths 1, 2, 4 and 8 bytes, with
// MMIO dispatch, page-spanning slow paths and refill-on-miss.
package softmmu

/*
 * renode-min - Soft-MMU access engine
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
	"fmt"
	"sync"

	"github.com/mszczodrak/renode-min/hostcall"
	"github.com/mszczodrak/renode-min/ram"
	"github.com/mszczodrak/renode-min/tlb"
)

// Fault is raised (by panic) when Load/Store cannot complete: a TLB refill
// failed, an unaligned access was rejected under AlignedOnly, or a RAM
// access fell outside the backing store. Probe callers use LoadErr instead to get this
// back as a plain error; Store has no such probe variant.
type Fault struct {
	Addr uint64
	Kind tlb.AccessKind
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("softmmu: fault at %#x: %v", f.Addr, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// FillFunc is the refill hook invoked on a TLB miss. It must install an
// entry covering addr in tbl (via InstallRAM/InstallMMIO) and return nil,
// or return the guest-visible reason access is denied (e.g. a PMP
// violation). softmmu retries the access once after a successful fill,
// matching tlb_fill's redo-on-success contract.
type FillFunc func(mmuIdx int, addr uint64, kind tlb.AccessKind) error

// Config toggles the engine's handling of access widths and byte order, and
// carries the settings a caller needs to wire up the rest of the core
// (pmp.New's register width, debug tracing) even though the Engine itself
// only consults BigEndian and AlignedOnly.
type Config struct {
	BigEndian      bool
	AlignedOnly    bool
	CodeAccessOnly bool // fill must resolve Code access rights independently of Read
	GuestWordBits  int  // 32 or 64; selects pmp register packing width
	DebugPMP       bool
}

// globalMemoryLock is the process-wide memory lock (C5), shared by every
// Engine.
var globalMemoryLock sync.Mutex

// Engine ties a TLB table, a RAM backing store and the host callback
// surface together behind the process-wide globalMemoryLock (C5): every
// access acquires it, performs its bus/RAM operation and any TB-dirty
// notification, then releases it, matching
// acquire_global_memory_lock/release_global_memory_lock.
type Engine struct {
	tbl *tlb.Table
	mem *ram.Memory
	cb  hostcall.Callbacks
	fill FillFunc
	cfg Config
}

// New builds an Engine over tbl/mem/cb, using fill to service TLB misses.
func New(tbl *tlb.Table, mem *ram.Memory, cb hostcall.Callbacks, fill FillFunc, cfg Config) *Engine {
	return &Engine{tbl: tbl, mem: mem, cb: cb, fill: fill, cfg: cfg}
}

func accessKindConst(kind tlb.AccessKind) int {
	switch kind {
	case tlb.Write:
		return hostcall.AccessWrite
	case tlb.Code:
		return hostcall.AccessCode
	default:
		return hostcall.AccessRead
	}
}

func traceKind(kind tlb.AccessKind, isIO bool) int {
	switch {
	case kind == tlb.Code:
		return hostcall.TraceInsnFetch
	case isIO && kind == tlb.Write:
		return hostcall.TraceIOWrite
	case isIO:
		return hostcall.TraceIOREAD
	case kind == tlb.Write:
		return hostcall.TraceMemWrite
	default:
		return hostcall.TraceMemRead
	}
}

// Load performs a width-byte load of kind Read or Code at addr in mmuIdx,
// panicking with *Fault on failure. pc is forwarded to OnMemoryAccess for
// tracing and may be zero if the caller has none to report.
func (e *Engine) Load(pc, addr uint64, width int, mmuIdx int, kind tlb.AccessKind) uint64 {
	v, err := e.LoadErr(pc, addr, width, mmuIdx, kind)
	if err != nil {
		panic(&Fault{Addr: addr, Kind: kind, Err: err})
	}
	return v
}

// LoadErr is Load's probe variant: callers that want to test an address
// without unwinding the guest (disassembly, watchpoint evaluation) get the
// failure back as a plain error instead of a panic.
func (e *Engine) LoadErr(pc, addr uint64, width int, mmuIdx int, kind tlb.AccessKind) (uint64, error) {
	globalMemoryLock.Lock()
	defer globalMemoryLock.Unlock()
	return e.loadLocked(pc, addr, width, mmuIdx, kind)
}

// Store performs a width-byte store at addr in mmuIdx. It has no error
// return: a failing refill or an out-of-range write panics with *Fault,
// matching spec.md §7 — stores either complete or unwind, they never
// surface a plain error the way Load*Err probes do.
func (e *Engine) Store(pc, addr uint64, width int, mmuIdx int, val uint64) {
	globalMemoryLock.Lock()
	defer globalMemoryLock.Unlock()
	if err := e.storeLocked(pc, addr, width, mmuIdx, val); err != nil {
		panic(&Fault{Addr: addr, Kind: tlb.Write, Err: err})
	}
}

func (e *Engine) checkAligned(addr uint64, width int) error {
	if e.cfg.AlignedOnly && addr%uint64(width) != 0 {
		return fmt.Errorf("unaligned access: addr %#x width %d", addr, width)
	}
	return nil
}

func spansPage(addr uint64, width int) bool {
	return (addr&uint64(tlb.PageMask))+uint64(width)-1 >= tlb.PageSize
}

// loadLocked is the retry loop: pre-flush one-shot, test the TLB, dispatch
// to MMIO/span/direct, or fill and redo. Must be called with
// globalMemoryLock held.
func (e *Engine) loadLocked(pc, addr uint64, width int, mmuIdx int, kind tlb.AccessKind) (uint64, error) {
	e.tbl.PreFlushOneShot(mmuIdx, addr, kind)

	for {
		ent := e.tbl.Raw(mmuIdx, addr)
		if tlb.Match(ent, kind, addr) {
			if tlb.IsMMIO(ent, kind) {
				if err := e.checkAligned(addr, width); err != nil {
					return 0, err
				}
				v := e.ioRead(addr, width)
				e.cb.OnMemoryAccess(pc, traceKind(kind, true), addr)
				return v, nil
			}
			if spansPage(addr, width) {
				v, err := e.slowLoadSpan(pc, addr, width, mmuIdx, kind)
				if err != nil {
					return 0, err
				}
				e.cb.OnMemoryAccess(pc, traceKind(kind, false), addr)
				return v, nil
			}
			if err := e.checkAligned(addr, width); err != nil {
				return 0, err
			}
			v, err := e.ramLoad(ent, addr, width)
			if err != nil {
				return 0, err
			}
			e.cb.OnMemoryAccess(pc, traceKind(kind, false), addr)
			return v, nil
		}

		if err := e.fill(mmuIdx, addr, kind); err != nil {
			e.cb.MMUFaultExternalHandler(addr, accessKindConst(kind), -1)
			return 0, err
		}
	}
}

func (e *Engine) storeLocked(pc, addr uint64, width int, mmuIdx int, val uint64) error {
	e.tbl.PreFlushOneShot(mmuIdx, addr, tlb.Write)

	for {
		ent := e.tbl.Raw(mmuIdx, addr)
		if tlb.Match(ent, tlb.Write, addr) {
			if tlb.IsMMIO(ent, tlb.Write) {
				if err := e.checkAligned(addr, width); err != nil {
					return err
				}
				e.ioWrite(ent, addr, width, val)
				e.cb.OnMemoryAccess(pc, traceKind(tlb.Write, true), addr)
				return nil
			}
			if spansPage(addr, width) {
				if err := e.slowStoreSpan(addr, width, mmuIdx, val); err != nil {
					return err
				}
				e.cb.OnMemoryAccess(pc, traceKind(tlb.Write, false), addr)
				return nil
			}
			if err := e.checkAligned(addr, width); err != nil {
				return err
			}
			if err := e.ramStore(ent, addr, width, val); err != nil {
				return err
			}
			e.cb.OnMemoryAccess(pc, traceKind(tlb.Write, false), addr)
			return nil
		}

		if err := e.fill(mmuIdx, addr, tlb.Write); err != nil {
			e.cb.MMUFaultExternalHandler(addr, accessKindConst(tlb.Write), -1)
			return err
		}
	}
}

// ramLoad and ramStore bypass ram.Memory's own (always little-endian)
// Load/Store helpers: the guest's configured byte order is this package's
// concern, not the backing store's, so multi-byte values are assembled
// directly from the raw slice according to cfg.BigEndian.
func (e *Engine) ramLoad(ent *tlb.Entry, addr uint64, width int) (uint64, error) {
	off := uint64(int64(addr) + ent.Addend)
	if !e.mem.InRange(off, width) {
		return 0, fmt.Errorf("ram load out of range: host offset %#x width %d", off, width)
	}
	buf := e.mem.Bytes()[off : off+uint64(width)]
	return decodeWidth(buf, e.cfg.BigEndian), nil
}

func (e *Engine) ramStore(ent *tlb.Entry, addr uint64, width int, val uint64) error {
	off := uint64(int64(addr) + ent.Addend)
	if !e.mem.InRange(off, width) {
		return fmt.Errorf("ram store out of range: host offset %#x width %d", off, width)
	}
	buf := e.mem.Bytes()[off : off+uint64(width)]
	encodeWidth(buf, e.cfg.BigEndian, val)
	return nil
}

func decodeWidth(buf []byte, bigEndian bool) uint64 {
	var v uint64
	if bigEndian {
		for i := 0; i < len(buf); i++ {
			v = (v << 8) | uint64(buf[i])
		}
	} else {
		for i := len(buf) - 1; i >= 0; i-- {
			v = (v << 8) | uint64(buf[i])
		}
	}
	return v
}

func encodeWidth(buf []byte, bigEndian bool, val uint64) {
	if bigEndian {
		for i := len(buf) - 1; i >= 0; i-- {
			buf[i] = byte(val)
			val >>= 8
		}
	} else {
		for i := 0; i < len(buf); i++ {
			buf[i] = byte(val)
			val >>= 8
		}
	}
}

// ioRead dispatches a single aligned MMIO read through the host bus.
func (e *Engine) ioRead(addr uint64, width int) uint64 {
	switch width {
	case 1:
		return uint64(e.cb.ReadByte(addr))
	case 2:
		return uint64(e.cb.ReadWord(addr))
	case 4:
		return uint64(e.cb.ReadDword(addr))
	case 8:
		return e.cb.ReadQword(addr)
	default:
		panic(fmt.Sprintf("softmmu: unsupported width %d", width))
	}
}

// ioWrite dispatches a single aligned MMIO write, routing IOIndexNotDirty
// entries through NotDirtyWrite instead of the plain bus write so the host
// can mark translated blocks over addr dirty (C5's post-write step).
func (e *Engine) ioWrite(ent *tlb.Entry, addr uint64, width int, val uint64) {
	if ent.IOIndex == hostcall.IOIndexNotDirty {
		e.cb.NotDirtyWrite(addr, val, width)
		return
	}
	switch width {
	case 1:
		e.cb.WriteByte(addr, uint8(val))
	case 2:
		e.cb.WriteWord(addr, uint16(val))
	case 4:
		e.cb.WriteDword(addr, uint32(val))
	case 8:
		e.cb.WriteQword(addr, val)
	default:
		panic(fmt.Sprintf("softmmu: unsupported width %d", width))
	}
}

// slowLoadSpan handles a load that crosses a page boundary by splitting it
// into two width-aligned sub-loads and recombining them byte-shifted,
// honoring Config.BigEndian.
func (e *Engine) slowLoadSpan(pc, addr uint64, width int, mmuIdx int, kind tlb.AccessKind) (uint64, error) {
	addr1 := addr &^ uint64(width-1)
	addr2 := addr1 + uint64(width)

	res1, err := e.loadLocked(pc, addr1, width, mmuIdx, kind)
	if err != nil {
		return 0, err
	}
	res2, err := e.loadLocked(pc, addr2, width, mmuIdx, kind)
	if err != nil {
		return 0, err
	}

	shift := uint((addr & uint64(width-1)) * 8)
	bits := uint(width * 8)
	var res uint64
	if e.cfg.BigEndian {
		res = (res1 << shift) | (res2 >> (bits - shift))
	} else {
		res = (res1 >> shift) | (res2 << (bits - shift))
	}
	return maskWidth(res, width), nil
}

// slowStoreSpan handles a store that crosses a page boundary by writing it
// byte by byte, in guest byte order.
func (e *Engine) slowStoreSpan(addr uint64, width int, mmuIdx int, val uint64) error {
	for i := width - 1; i >= 0; i-- {
		var b uint8
		if e.cfg.BigEndian {
			b = uint8(val >> (uint((width-1)*8) - uint(i*8)))
		} else {
			b = uint8(val >> uint(i*8))
		}
		if err := e.storeLocked(0, addr+uint64(i), 1, mmuIdx, uint64(b)); err != nil {
			return err
		}
	}
	return nil
}

func maskWidth(v uint64, width int) uint64 {
	if width >= 8 {
		return v
	}
	return v & ((uint64(1) << uint(width*8)) - 1)
}
