package configparser

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTemp(t, `
ram_size: 4096
pmp_entries: 4
tlb_size: 64
regions:
  - name: uart
    base: 0x10000000
    size: 0x1000
flags:
  big_endian: true
  guest_word_bits: 32
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RAMSize != 4096 {
		t.Errorf("RAMSize got %d expected 4096", cfg.RAMSize)
	}
	if cfg.PMPEntries != 4 {
		t.Errorf("PMPEntries got %d expected 4", cfg.PMPEntries)
	}
	if len(cfg.Regions) != 1 || cfg.Regions[0].Name != "uart" {
		t.Fatalf("unexpected regions: %+v", cfg.Regions)
	}
	if cfg.Regions[0].Base != 0x10000000 || cfg.Regions[0].Size != 0x1000 {
		t.Errorf("region bounds got base %#x size %#x", cfg.Regions[0].Base, cfg.Regions[0].Size)
	}
	if !cfg.Flags.BigEndian {
		t.Errorf("expected BigEndian true")
	}
	if cfg.Flags.GuestWordBits != 32 {
		t.Errorf("GuestWordBits got %d expected 32", cfg.Flags.GuestWordBits)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeTemp(t, "ram_size: 8192\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RAMSize != 8192 {
		t.Errorf("RAMSize got %d expected 8192", cfg.RAMSize)
	}
	if cfg.PMPEntries != Default().PMPEntries {
		t.Errorf("PMPEntries should keep default, got %d", cfg.PMPEntries)
	}
	if cfg.Flags.GuestWordBits != 64 {
		t.Errorf("GuestWordBits should keep default 64, got %d", cfg.Flags.GuestWordBits)
	}
}

func TestLoadRejectsBadTLBSize(t *testing.T) {
	path := writeTemp(t, "tlb_size: 100\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for non-power-of-two tlb_size")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadRejectsZeroSizeRegion(t *testing.T) {
	path := writeTemp(t, `
regions:
  - name: bad
    base: 0x1000
    size: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for zero-size region")
	}
}
