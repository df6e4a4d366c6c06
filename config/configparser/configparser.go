// Package configparser loads the soft-MMU demo's startup layout: guest
// RAM size, the MMIO windows to register, and the Config flags the
// softmmu/pmp packages take at construction time.
package configparser

/*
 * renode-min - Configuration file parser
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
	"os"

	"gopkg.in/yaml.v3"
)

// Region describes one MMIO window to register with the demo's address
// map: [Base, Base+Size) dispatches through a device named Name.
type Region struct {
	Name string `yaml:"name"`
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// Flags mirrors softmmu.Config/pmp.New's construction-time settings, kept
// as plain fields here so the YAML document stays readable independent of
// those packages' own struct tags.
type Flags struct {
	BigEndian      bool `yaml:"big_endian"`
	AlignedOnly    bool `yaml:"aligned_only"`
	CodeAccessOnly bool `yaml:"code_access_only"`
	GuestWordBits  int  `yaml:"guest_word_bits"` // 32 or 64 (XLEN)
	DebugPMP       bool `yaml:"debug_pmp"`
}

// Config is the top-level document loaded from the demo's --config file.
type Config struct {
	RAMSize    uint64   `yaml:"ram_size"`
	PMPEntries int      `yaml:"pmp_entries"`
	TLBSize    uint32   `yaml:"tlb_size"`
	Regions    []Region `yaml:"regions"`
	Flags      Flags    `yaml:"flags"`
	DebugFile  string   `yaml:"debug_file"`
}

// Default returns the configuration the demo uses when no --config file is
// given: 16MiB of RAM, 16 PMP entries, a 256-slot TLB, RV64 register
// packing, little-endian, no regions.
func Default() Config {
	return Config{
		RAMSize:    16 * 1024 * 1024,
		PMPEntries: 16,
		TLBSize:    256,
		Flags: Flags{
			GuestWordBits: 64,
		},
	}
}

// Load parses a YAML document at path into a Config, starting from
// Default() so a partial file only overrides what it mentions.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("configparser: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("configparser: parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("configparser: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RAMSize == 0 {
		return fmt.Errorf("ram_size must be non-zero")
	}
	if c.PMPEntries <= 0 {
		return fmt.Errorf("pmp_entries must be positive")
	}
	if c.TLBSize == 0 || c.TLBSize&(c.TLBSize-1) != 0 {
		return fmt.Errorf("tlb_size must be a power of two")
	}
	if c.Flags.GuestWordBits != 32 && c.Flags.GuestWordBits != 64 {
		return fmt.Errorf("flags.guest_word_bits must be 32 or 64")
	}
	for _, r := range c.Regions {
		if r.Size == 0 {
			return fmt.Errorf("region %q: size must be non-zero", r.Name)
		}
	}
	return nil
}
