package softmmu

import (
	"errors"
	"testing"

	"github.com/mszczodrak/renode-min/hostcall"
	"github.com/mszczodrak/renode-min/ram"
	"github.com/mszczodrak/renode-min/tlb"
)

const mmuIdx = 0

func newTestEngine(t *testing.T, cfg Config) (*Engine, *ram.Memory, *tlb.Table) {
	t.Helper()
	mem, err := ram.New(64 * 1024)
	if err != nil {
		t.Fatalf("ram.New: %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	tb := tlb.New(1, 256)
	fill := func(idx int, addr uint64, kind tlb.AccessKind) error {
		if !mem.InRange(addr, 1) {
			return errors.New("address not backed by ram")
		}
		tb.InstallRAM(idx, addr, 0, true, true, true, false)
		return nil
	}
	return New(tb, mem, hostcall.Default(), fill, cfg), mem, tb
}

func TestLoadStoreRoundTripAllWidths(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	cases := []struct {
		width int
		val   uint64
	}{
		{1, 0xab},
		{2, 0x1234},
		{4, 0xdeadbeef},
		{8, 0x0102030405060708},
	}
	for _, c := range cases {
		e.Store(0, 0x100, c.width, mmuIdx, c.val)
		got := e.Load(0, 0x100, c.width, mmuIdx, tlb.Read)
		if got != c.val {
			t.Errorf("width %d: got %#x expected %#x", c.width, got, c.val)
		}
	}
}

func TestFillOnMissThenRetry(t *testing.T) {
	e, _, tb := newTestEngine(t, Config{})

	if tlb.Match(tb.Raw(mmuIdx, 0x200), tlb.Read, 0x200) {
		t.Fatalf("tlb should start empty")
	}
	v := e.Load(0, 0x200, 4, mmuIdx, tlb.Read)
	if v != 0 {
		t.Errorf("fresh ram should read zero, got %#x", v)
	}
	if !tlb.Match(tb.Raw(mmuIdx, 0x200), tlb.Read, 0x200) {
		t.Fatalf("fill should have installed a matching entry")
	}
}

func TestFillFailurePropagatesAsFault(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic on out-of-range access")
		}
		f, ok := r.(*Fault)
		if !ok {
			t.Fatalf("expected *Fault, got %T", r)
		}
		if f.Addr != 0x100000 {
			t.Errorf("fault addr got %#x expected %#x", f.Addr, 0x100000)
		}
	}()
	e.Load(0, 0x100000, 4, mmuIdx, tlb.Read)
}

func TestLoadErrDoesNotPanic(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	_, err := e.LoadErr(0, 0x100000, 4, mmuIdx, tlb.Read)
	if err == nil {
		t.Fatalf("expected error for out-of-range probe")
	}
}

func TestPageSpanLittleEndian(t *testing.T) {
	e, mem, _ := newTestEngine(t, Config{BigEndian: false})

	addr := uint64(tlb.PageSize - 2) // 2 bytes before the page boundary
	e.Store(0, addr, 4, mmuIdx, 0xdeadbeef)

	// little-endian encoding of 0xdeadbeef is EF BE AD DE
	if got := mem.Load(addr, 1); got != 0xef {
		t.Errorf("byte 0 got %#x expected 0xef", got)
	}
	if got := mem.Load(addr+3, 1); got != 0xde {
		t.Errorf("byte 3 got %#x expected 0xde", got)
	}

	got := e.Load(0, addr, 4, mmuIdx, tlb.Read)
	if got != 0xdeadbeef {
		t.Errorf("recombined load got %#x expected 0xdeadbeef", got)
	}
}

func TestPageSpanBigEndian(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{BigEndian: true})

	addr := uint64(tlb.PageSize - 2)
	e.Store(0, addr, 4, mmuIdx, 0xdeadbeef)

	got := e.Load(0, addr, 4, mmuIdx, tlb.Read)
	if got != 0xdeadbeef {
		t.Errorf("recombined big-endian load got %#x expected 0xdeadbeef", got)
	}
}

func TestAlignedOnlyRejectsMisaligned(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{AlignedOnly: true})

	_, err := e.LoadErr(0, 0x101, 4, mmuIdx, tlb.Read)
	if err == nil {
		t.Fatalf("expected unaligned access to be rejected")
	}
}

func TestMMIOReadWriteDispatch(t *testing.T) {
	mem, err := ram.New(4096)
	if err != nil {
		t.Fatalf("ram.New: %v", err)
	}
	defer mem.Close()

	tb := tlb.New(1, 256)
	var lastWrite uint32
	cb := hostcall.Default()
	cb.ReadDword = func(addr uint64) uint32 { return 0x12345678 }
	cb.WriteDword = func(addr uint64, v uint32) { lastWrite = v }

	fill := func(idx int, addr uint64, kind tlb.AccessKind) error {
		tb.InstallMMIO(idx, addr, 5, true, true, false, false)
		return nil
	}
	e := New(tb, mem, cb, fill, Config{})

	got := e.Load(0, 0x9000, 4, mmuIdx, tlb.Read)
	if got != 0x12345678 {
		t.Errorf("mmio read got %#x expected 0x12345678", got)
	}

	e.Store(0, 0x9000, 4, mmuIdx, 0xcafef00d)
	if lastWrite != 0xcafef00d {
		t.Errorf("mmio write got %#x expected 0xcafef00d", lastWrite)
	}
}

func TestMMIONotDirtyRoutesThroughHook(t *testing.T) {
	mem, err := ram.New(4096)
	if err != nil {
		t.Fatalf("ram.New: %v", err)
	}
	defer mem.Close()

	tb := tlb.New(1, 256)
	var notDirtyCalls int
	cb := hostcall.Default()
	cb.NotDirtyWrite = func(addr uint64, val uint64, width int) { notDirtyCalls++ }

	fill := func(idx int, addr uint64, kind tlb.AccessKind) error {
		tb.InstallMMIO(idx, addr, hostcall.IOIndexNotDirty, true, true, false, false)
		return nil
	}
	e := New(tb, mem, cb, fill, Config{})

	e.Store(0, 0x9000, 4, mmuIdx, 42)
	if notDirtyCalls != 1 {
		t.Errorf("expected NotDirtyWrite to be called once, got %d", notDirtyCalls)
	}
}

func TestOneShotForcesRefillEachTime(t *testing.T) {
	mem, err := ram.New(4096)
	if err != nil {
		t.Fatalf("ram.New: %v", err)
	}
	defer mem.Close()

	tb := tlb.New(1, 256)
	fillCalls := 0
	fill := func(idx int, addr uint64, kind tlb.AccessKind) error {
		fillCalls++
		tb.InstallRAM(idx, addr, 0, true, true, false, true)
		return nil
	}
	e := New(tb, mem, hostcall.Default(), fill, Config{})

	e.Load(0, 0x10, 1, mmuIdx, tlb.Read)
	e.Load(0, 0x10, 1, mmuIdx, tlb.Read)

	if fillCalls != 2 {
		t.Errorf("one-shot entry should force a fill on every access, got %d calls", fillCalls)
	}
}
