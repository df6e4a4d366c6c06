// Package hostcall declares the narrow capability surface the soft-MMU
// core consumes from its host: bus I/O, logging, allocation and tracing.
package hostcall

/*
 * renode-min - Host callback surface
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

import "log/slog"

// Access type passed to trace/fault callbacks.
const (
	AccessRead int = iota
	AccessWrite
	AccessCode
)

// Memory access kinds reported through OnMemoryAccess, matching the
// MEMORY_IO_READ/WRITE/MEMORY_READ/WRITE/INSN_FETCH taxonomy of the
// original softmmu_template.h.
const (
	TraceIOREAD int = iota
	TraceIOWrite
	TraceMemRead
	TraceMemWrite
	TraceInsnFetch
)

// Callbacks is the table of host-provided capabilities. Every field has a
// zero-value no-op default (see Default); a host wires in only the ones it
// cares about, mirroring the teacher's one-interface-per-device pattern
// generalized to one struct of callbacks per host.
type Callbacks struct {
	// Bus read/write, 1/2/4/8 bytes. Assumed total: any bus-side error
	// must be reported by raising a guest exception before returning,
	// not by a Go error return.
	ReadByte   func(addr uint64) uint8
	ReadWord   func(addr uint64) uint16
	ReadDword  func(addr uint64) uint32
	ReadQword  func(addr uint64) uint64
	WriteByte  func(addr uint64, v uint8)
	WriteWord  func(addr uint64, v uint16)
	WriteDword func(addr uint64, v uint32)
	WriteQword func(addr uint64, v uint64)

	// NotDirtyWrite replaces the bus write for the IOIndexNotDirty slot.
	NotDirtyWrite func(addr uint64, val uint64, width int)

	// Fatal/log/allocation hooks.
	Abort func(msg string)
	Log   func(level slog.Level, msg string)

	Malloc  func(size int) []byte
	Realloc func(buf []byte, size int) []byte
	Free    func(buf []byte)

	// Translation-block/cache lifecycle.
	OnTranslationBlockFindSlow  func(pc uint64)
	OnBlockBegin                func(addr uint64, size uint32) uint32
	OnBlockFinished             func(pc uint64, executed uint32)
	OnTranslationCacheSizeChange func(newSize uint64)
	InvalidateTBInOtherCPUs     func(start, end uintptr)

	// CPU identity and scheduling.
	GetCPUIndex        func() int32
	GetInstructionCount func() int32
	GetPendingInterrupt func() int32
	IsInDebugMode       func() bool

	// Address space translation between guest offset and host pointer.
	GuestOffsetToHostPtr func(offset uint64) uintptr
	HostPtrToGuestOffset func(ptr uintptr) uint64

	// Raised when the slow path / refill needs to signal a guest fault
	// that this package cannot represent (e.g. PMP denial at a window
	// the outer translator owns).
	MMUFaultExternalHandler func(addr uint64, accessType int, windowIndex int32)

	// Profiling / tracing.
	ProfilerAnnounceStackChange   func(curAddr, curRetAddr, curInsnCount uint64, isFrameAdd bool)
	ProfilerAnnounceContextChange func(contextID uint64)
	OnMemoryAccess                func(pc uint64, operation int, addr uint64)
	OnInterruptBegin              func(exceptionIndex uint64)
	OnInterruptEnd                func(exceptionIndex uint64)

	// x86 port I/O, dispatched through the trampoline package.
	ReadByteFromPort   func(port uint16) uint8
	ReadWordFromPort   func(port uint16) uint16
	ReadDwordFromPort  func(port uint16) uint32
	WriteByteToPort    func(port uint16, v uint8)
	WriteWordToPort    func(port uint16, v uint16)
	WriteDwordToPort   func(port uint16, v uint32)
}

// Default returns a Callbacks value where every field no-ops or returns a
// zero value (Malloc and Realloc return a fresh zeroed buffer, and
// GetPendingInterrupt returns -1), matching the weak-symbol defaults of the
// original C surface.
func Default() Callbacks {
	return Callbacks{
		ReadByte:   func(uint64) uint8 { return 0 },
		ReadWord:   func(uint64) uint16 { return 0 },
		ReadDword:  func(uint64) uint32 { return 0 },
		ReadQword:  func(uint64) uint64 { return 0 },
		WriteByte:  func(uint64, uint8) {},
		WriteWord:  func(uint64, uint16) {},
		WriteDword: func(uint64, uint32) {},
		WriteQword: func(uint64, uint64) {},

		NotDirtyWrite: func(uint64, uint64, int) {},

		Abort: func(string) {},
		Log:   func(slog.Level, string) {},

		Malloc:  func(size int) []byte { return make([]byte, size) },
		Realloc: func(buf []byte, size int) []byte { return append(buf[:0:0], make([]byte, size)...) },
		Free:    func([]byte) {},

		OnTranslationBlockFindSlow:   func(uint64) {},
		OnBlockBegin:                 func(uint64, uint32) uint32 { return 0 },
		OnBlockFinished:              func(uint64, uint32) {},
		OnTranslationCacheSizeChange: func(uint64) {},
		InvalidateTBInOtherCPUs:      func(uintptr, uintptr) {},

		GetCPUIndex:         func() int32 { return 0 },
		GetInstructionCount: func() int32 { return 0 },
		GetPendingInterrupt: func() int32 { return -1 },
		IsInDebugMode:       func() bool { return false },

		GuestOffsetToHostPtr: func(uint64) uintptr { return 0 },
		HostPtrToGuestOffset: func(uintptr) uint64 { return 0 },

		MMUFaultExternalHandler: func(uint64, int, int32) {},

		ProfilerAnnounceStackChange:   func(uint64, uint64, uint64, bool) {},
		ProfilerAnnounceContextChange: func(uint64) {},
		OnMemoryAccess:                func(uint64, int, uint64) {},
		OnInterruptBegin:              func(uint64) {},
		OnInterruptEnd:                func(uint64) {},

		ReadByteFromPort:  func(uint16) uint8 { return 0 },
		ReadWordFromPort:  func(uint16) uint16 { return 0 },
		ReadDwordFromPort: func(uint16) uint32 { return 0 },
		WriteByteToPort:   func(uint16, uint8) {},
		WriteWordToPort:   func(uint16, uint16) {},
		WriteDwordToPort:  func(uint16, uint32) {},
	}
}

// IOIndexNotDirty is the designated I/O table index that triggers the
// NotDirtyWrite hook instead of the generic bus write, matching
// IO_MEM_NOTDIRTY in the original source.
const IOIndexNotDirty uint32 = 0

// IOMemShift and IONumEntries describe the I/O memory region table address
// decode: index = (physAddr >> IOMemShift) & (IONumEntries - 1).
const (
	IOMemShift   = 12
	IONumEntries = 1 << 6
)
