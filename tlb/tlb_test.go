package tlb

import "testing"

func TestInstallRAMRoundTrip(t *testing.T) {
	tb := New(1, 256)
	addr := uint64(0x2000)
	tb.InstallRAM(0, addr, 0x1000, true, true, false, false)

	e := tb.Raw(0, addr)
	if !Match(e, Read, addr) {
		t.Fatalf("expected read match at %#x", addr)
	}
	if !Match(e, Write, addr) {
		t.Fatalf("expected write match at %#x", addr)
	}
	if Match(e, Code, addr) {
		t.Fatalf("code should not match: entry was installed non-executable")
	}
	if e.Addend != 0x1000 {
		t.Errorf("addend got %#x expected %#x", e.Addend, 0x1000)
	}
}

func TestInstallRAMDifferentPageMisses(t *testing.T) {
	tb := New(1, 256)
	tb.InstallRAM(0, 0x2000, 0, true, true, true, false)

	e := tb.Raw(0, 0x3000)
	if Match(e, Read, 0x3000) {
		t.Fatalf("slot collision: entry for page 0x2000 should not match 0x3000's page")
	}
}

func TestInstallMMIOFlagged(t *testing.T) {
	tb := New(1, 256)
	tb.InstallMMIO(0, 0x9000, 7, true, true, false, false)

	e := tb.Raw(0, 0x9000)
	if !Match(e, Read, 0x9000) {
		t.Fatalf("expected read match for mmio entry")
	}
	if !IsMMIO(e, Read) {
		t.Fatalf("expected IsMMIO true")
	}
	if e.IOIndex != 7 {
		t.Errorf("IOIndex got %d expected 7", e.IOIndex)
	}
}

func TestOneShotPreFlush(t *testing.T) {
	tb := New(1, 256)
	addr := uint64(0x4000)
	tb.InstallRAM(0, addr, 0, true, false, false, true)

	e := tb.Raw(0, addr)
	if !IsOneShot(e, Read) {
		t.Fatalf("expected one-shot flag set")
	}
	if !Match(e, Read, addr) {
		t.Fatalf("one-shot entry should still match before pre-flush")
	}

	flushed := tb.PreFlushOneShot(0, addr, Read)
	if !flushed {
		t.Fatalf("expected PreFlushOneShot to report a flush")
	}

	e = tb.Raw(0, addr)
	if Match(e, Read, addr) {
		t.Fatalf("entry should miss after one-shot pre-flush")
	}
}

func TestFlushPageOnlyAffectsThatPage(t *testing.T) {
	tb := New(2, 256)
	tb.InstallRAM(0, 0x1000, 0, true, true, true, false)
	tb.InstallRAM(0, 0x2000, 0, true, true, true, false)
	tb.InstallRAM(1, 0x1000, 0, true, true, true, false)

	tb.FlushPage(0x1000)

	if Match(tb.Raw(0, 0x1000), Read, 0x1000) {
		t.Fatalf("page 0x1000 in mmu 0 should be flushed")
	}
	if Match(tb.Raw(1, 0x1000), Read, 0x1000) {
		t.Fatalf("page 0x1000 in mmu 1 should be flushed")
	}
	if !Match(tb.Raw(0, 0x2000), Read, 0x2000) {
		t.Fatalf("page 0x2000 should be untouched")
	}
}

func TestFlushAll(t *testing.T) {
	tb := New(2, 256)
	tb.InstallRAM(0, 0x1000, 0, true, true, true, false)
	tb.InstallRAM(1, 0x5000, 0, true, true, true, false)

	tb.FlushAll()

	if Match(tb.Raw(0, 0x1000), Read, 0x1000) {
		t.Fatalf("mmu 0 entry should be flushed")
	}
	if Match(tb.Raw(1, 0x5000), Read, 0x5000) {
		t.Fatalf("mmu 1 entry should be flushed")
	}
}

func TestSlotWraps(t *testing.T) {
	tb := New(1, 16)
	a := tb.slot(0x0000)
	b := tb.slot(0x10000)
	if a != b {
		t.Errorf("expected slot aliasing across 16 pages: got %d and %d", a, b)
	}
}
