// Package pmp implements the RISC-V Physical Memory Protection unit (C4):
// a small, indexed array of config/address register pairs that narrows the
// access rights the soft-MMU grants for any guest physical address.
package pmp

/*
 * renode-min - Physical Memory Protection
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

import "math/bits"

// Access is a bitmask of the three permission bits carried in a cfg byte.
type Access uint8

const (
	Read  Access = 1 << 0
	Write Access = 1 << 1
	Exec  Access = 1 << 2
	All   Access = Read | Write | Exec
)

// lockBit is cfg bit 7.
const lockBit uint8 = 1 << 7

// Address-matching mode, cfg bits [4:3].
const (
	AMatchOff   uint8 = 0
	AMatchTOR   uint8 = 1
	AMatchNA4   uint8 = 2
	AMatchNAPOT uint8 = 3
)

func aField(cfg uint8) uint8 { return (cfg >> 3) & 0x3 }

// Priv is a RISC-V privilege level, restricted to the two values this unit
// distinguishes.
type Priv uint8

const (
	PrivUser    Priv = 0
	PrivMachine Priv = 3
)

// entry is one cfg/addr register pair plus its decoded [sa, ea] interval,
// regenerated whenever the pair changes (pmp_update_rule keeps the hot path,
// access checking, free of per-access decode work).
type entry struct {
	cfg  uint8
	addr uint64
	sa   uint64
	ea   uint64
}

// Unit is the PMP register file for one hart.
type Unit struct {
	entries    []entry
	numRules   uint32
	wordBytes  int  // 4 (RV32) or 8 (RV64); governs pmpcfg register packing
	grainFixed bool // priv >= 1.11: first NAPOT grain size sticks for all entries
	napotGrain int  // -1 until the first NAPOT entry sets it
	onChange   func()
}

// New creates a Unit with n entries. wordBytes selects pmpcfg register
// packing (4 or 8). grainFixed enables the priv-1.11-and-later rule that
// the first NAPOT grain size observed is forced onto every later NAPOT
// entry. onChange, if non-nil, is called after every cfg/addr write that
// actually takes effect (wired to tlb.Table.FlushAll by the caller, mirroring
// pmp_update_rule's unconditional tlb_flush).
func New(n int, wordBytes int, grainFixed bool, onChange func()) *Unit {
	return &Unit{
		entries:    make([]entry, n),
		wordBytes:  wordBytes,
		grainFixed: grainFixed,
		napotGrain: -1,
		onChange:   onChange,
	}
}

// IsLocked reports whether entry i is locked, either directly (its own L
// bit) or indirectly: a TOR entry borrows its upper bound from entry i, so
// a locked TOR entry at i+1 also locks i against further writes.
func (u *Unit) IsLocked(i int) bool {
	if u.entries[i].cfg&lockBit != 0 {
		return true
	}
	if i+1 >= len(u.entries) {
		return false
	}
	next := u.entries[i+1]
	return next.cfg&lockBit != 0 && aField(next.cfg) == AMatchTOR
}

// CfgRead returns entry i's raw cfg byte.
func (u *Unit) CfgRead(i int) uint8 {
	if i < 0 || i >= len(u.entries) {
		return 0
	}
	return u.entries[i].cfg
}

// CfgWrite sets entry i's cfg byte, unless the entry is locked. A
// successful write regenerates the entry's decoded interval and the global
// rule count, then flushes the TLB.
func (u *Unit) CfgWrite(i int, val uint8) {
	if i < 0 || i >= len(u.entries) {
		return
	}
	if u.IsLocked(i) {
		return
	}
	u.entries[i].cfg = val
	u.updateRule(i)
}

// AddrRead returns entry i's raw addr register (already shifted left two
// bits would be the physical address; callers that need the physical
// interval should use the decoded sa/ea via GetAccess/FindOverlapping
// instead of reconstructing it from this value).
func (u *Unit) AddrRead(i int) uint64 {
	if i < 0 || i >= len(u.entries) {
		return 0
	}
	return u.entries[i].addr
}

// AddrWrite sets entry i's addr register, unless the entry is locked.
func (u *Unit) AddrWrite(i int, val uint64) {
	if i < 0 || i >= len(u.entries) {
		return
	}
	if u.IsLocked(i) {
		return
	}
	u.entries[i].addr = val
	u.updateRule(i)
}

// decodeNAPOT turns a NAPOT-encoded addr register into a [sa, ea] interval.
// addr == all-ones is the degenerate "match everything" encoding.
func decodeNAPOT(addr uint64, grain int) (sa, ea uint64) {
	if addr == ^uint64(0) {
		return 0, ^uint64(0)
	}
	rng := (uint64(2) << uint(grain+2)) - 1
	base := (addr & (^uint64(0) << uint(grain+1))) << 2
	return base, base + rng
}

func (u *Unit) updateRule(i int) {
	u.numRules = 0

	this := u.entries[i]
	var prevAddr uint64
	if i >= 1 {
		prevAddr = u.entries[i-1].addr
	}

	var sa, ea uint64
	switch aField(this.cfg) {
	case AMatchOff:
		sa, ea = 0, ^uint64(0)

	case AMatchTOR:
		sa = prevAddr << 2
		ea = (this.addr << 2) - 1

	case AMatchNA4:
		sa = this.addr << 2
		ea = sa + 4 - 1

	case AMatchNAPOT:
		grain := bits.TrailingZeros64(^this.addr)
		if u.grainFixed {
			if u.napotGrain == -1 {
				u.napotGrain = grain
			} else if u.napotGrain != grain {
				grain = u.napotGrain
			}
		}
		sa, ea = decodeNAPOT(this.addr, grain)

	default:
		sa, ea = 0, 0
	}

	u.entries[i].sa = sa
	u.entries[i].ea = ea

	for j := range u.entries {
		if aField(u.entries[j].cfg) != AMatchOff {
			u.numRules++
		}
	}

	if u.onChange != nil {
		u.onChange()
	}
}

func (u *Unit) inRange(i int, addr uint64) bool {
	return addr >= u.entries[i].sa && addr <= u.entries[i].ea
}

// FindOverlapping returns the lowest-indexed entry at or after startingIndex
// whose decoded interval overlaps [addr, addr+size), or -1 if none does.
// Entries whose A field is OFF are not skipped: an OFF entry that has been
// written decodes to the whole address space and overlaps any range, so
// callers filter on A != OFF themselves.
func (u *Unit) FindOverlapping(addr, size uint64, startingIndex int) int {
	for i := startingIndex; i < len(u.entries); i++ {
		sa, ea := u.entries[i].sa, u.entries[i].ea
		if sa < addr {
			if ea >= addr {
				return i
			}
		} else if sa <= addr+size-1 {
			return i
		}
	}
	return -1
}

// GetAccess returns the access mask granted to [addr, addr+size) at the
// given privilege level, per spec.md §4.3: entries are scanned low to high;
// a straddling match (covers one endpoint but not the other) denies all
// access; a full match on a non-OFF entry returns R/W/X masked by the
// entry's own permission bits, except that machine mode on an unlocked
// entry gets R/W/X unmasked; no match at all defers to machine-mode-allows-everything,
// non-machine-denies-everything, but only once at least one rule exists.
func (u *Unit) GetAccess(addr, size uint64, priv Priv) Access {
	if u.numRules == 0 {
		return All
	}

	for i := range u.entries {
		s := u.inRange(i, addr)
		e := u.inRange(i, addr+size-1)

		if s != e {
			return 0
		}

		if s && e && aField(u.entries[i].cfg) != AMatchOff {
			allowed := All
			if priv != PrivMachine || u.IsLocked(i) {
				allowed &= Access(u.entries[i].cfg)
			}
			return allowed
		}
	}

	if priv == PrivMachine {
		return All
	}
	return 0
}

// regBytes picks the pmpcfg register packing width the RISC-V privileged
// spec defines for this XLEN: 4 cfg bytes per 32-bit register, 8 per 64-bit
// register (and only even pmpcfgN registers exist on RV64).
func (u *Unit) regBytes() int { return u.wordBytes }

// CfgCSRWrite packs val's bytes into the cfg entries backing pmpcfg
// register regIndex, honoring the RV64 even-register-only convention.
func (u *Unit) CfgCSRWrite(regIndex uint32, val uint64) {
	baseOffset := int(regIndex) * u.regBytes()
	if u.regBytes() == 8 {
		if regIndex%2 != 0 {
			return
		}
		baseOffset /= 2
	}
	for i := 0; i < u.regBytes(); i++ {
		u.CfgWrite(baseOffset+i, uint8(val>>(8*uint(i))))
	}
}

// CfgCSRRead unpacks the cfg entries backing pmpcfg register regIndex.
func (u *Unit) CfgCSRRead(regIndex uint32) uint64 {
	baseOffset := int(regIndex) * u.regBytes()
	if u.regBytes() == 8 {
		if regIndex%2 != 0 {
			return 0
		}
		baseOffset /= 2
	}
	var val uint64
	for i := 0; i < u.regBytes(); i++ {
		val |= uint64(u.CfgRead(baseOffset+i)) << (8 * uint(i))
	}
	return val
}

// NumEntries returns the number of PMP entries backing this unit.
func (u *Unit) NumEntries() int { return len(u.entries) }

// NumRules returns the number of entries whose A field is not OFF.
func (u *Unit) NumRules() uint32 { return u.numRules }
