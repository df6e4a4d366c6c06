/*
 * renode-min - Soft-MMU demo harness
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

// Command softmmu-demo drives a handful of guest memory accesses through
// the soft-MMU core end to end: PMP-gated TLB fill, RAM fast path, MMIO
// dispatch to the first configured region (when the configuration lists
// one) and a deliberate fault. It is a manual exercise harness, not
// part of the module's public surface.
package main

import (
	"fmt"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/mszczodrak/renode-min/config/configparser"
	"github.com/mszczodrak/renode-min/hostcall"
	"github.com/mszczodrak/renode-min/pmp"
	"github.com/mszczodrak/renode-min/ram"
	"github.com/mszczodrak/renode-min/softmmu"
	"github.com/mszczodrak/renode-min/tlb"
	"github.com/mszczodrak/renode-min/util/debug"
	"github.com/mszczodrak/renode-min/util/logger"
)

// mmuIdx assignments: one TLB column per privilege level.
const (
	mmuUser    = 0
	mmuMachine = 1
)

func privOf(mmuIdx int) pmp.Priv {
	if mmuIdx == mmuMachine {
		return pmp.PrivMachine
	}
	return pmp.PrivUser
}

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if optLogFile != nil && *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, new(bool)))
	slog.SetDefault(log)

	cfg := configparser.Default()
	if optConfig != nil && *optConfig != "" {
		loaded, err := configparser.Load(*optConfig)
		if err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
		cfg = loaded
	}
	if cfg.DebugFile != "" {
		if err := debug.SetFile(cfg.DebugFile); err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
	}

	mem, err := ram.New(cfg.RAMSize)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	defer mem.Close()

	tlbTable := tlb.New(2, cfg.TLBSize)
	wordBytes := cfg.Flags.GuestWordBits / 8
	pmpUnit := pmp.New(cfg.PMPEntries, wordBytes, true, func() {
		debug.DebugPMPf(cfg.Flags.DebugPMP, "rule table changed, flushing tlb")
		tlbTable.FlushAll()
	})

	cb := hostcall.Default()
	cb.ReadDword = func(addr uint64) uint32 {
		log.Debug("mmio read", "addr", fmt.Sprintf("%#x", addr))
		return 0
	}
	cb.WriteDword = func(addr uint64, v uint32) {
		log.Debug("mmio write", "addr", fmt.Sprintf("%#x", addr), "value", fmt.Sprintf("%#x", v))
	}

	regionFor := func(addr uint64) *configparser.Region {
		for i := range cfg.Regions {
			r := &cfg.Regions[i]
			if addr >= r.Base && addr < r.Base+r.Size {
				return r
			}
		}
		return nil
	}

	fill := func(mmuIdx int, addr uint64, kind tlb.AccessKind) error {
		priv := privOf(mmuIdx)
		access := pmpUnit.GetAccess(addr, 1, priv)

		var need pmp.Access
		switch kind {
		case tlb.Write:
			need = pmp.Write
		case tlb.Code:
			need = pmp.Exec
		default:
			need = pmp.Read
		}
		if access&need == 0 {
			return fmt.Errorf("pmp denied %v access at %#x", kind, addr)
		}

		readable := access&pmp.Read != 0
		writable := access&pmp.Write != 0
		executable := access&pmp.Exec != 0

		if r := regionFor(addr); r != nil {
			tlbTable.InstallMMIO(mmuIdx, addr, 1, readable, writable, executable, true)
			debug.DebugTLBf(cfg.Flags.DebugPMP, "installed mmio entry for %s at %#x", r.Name, addr)
			return nil
		}

		if !mem.InRange(addr, 1) {
			return fmt.Errorf("address %#x is not backed by ram or a configured mmio region", addr)
		}
		// Any active pmp rule, whatever its size, forces one-shot
		// installs, so the next access on the same page re-validates
		// instead of trusting a stale, possibly too-broad grant.
		oneShot := pmpUnit.NumRules() > 0
		tlbTable.InstallRAM(mmuIdx, addr, 0, readable, writable, executable, oneShot)
		return nil
	}

	engine := softmmu.New(tlbTable, mem, cb, fill, softmmu.Config{
		BigEndian:      cfg.Flags.BigEndian,
		AlignedOnly:    cfg.Flags.AlignedOnly,
		CodeAccessOnly: cfg.Flags.CodeAccessOnly,
		GuestWordBits:  cfg.Flags.GuestWordBits,
		DebugPMP:       cfg.Flags.DebugPMP,
	})

	log.Info("renode-min soft-mmu demo started", "ram_size", cfg.RAMSize, "pmp_entries", cfg.PMPEntries)

	engine.Store(0, 0x1000, 4, mmuMachine, 0xdeadbeef)
	got := engine.Load(0, 0x1000, 4, mmuMachine, tlb.Read)
	log.Info("ram round trip", "value", fmt.Sprintf("%#x", got))

	if len(cfg.Regions) > 0 {
		r := cfg.Regions[0]
		engine.Store(0, r.Base, 4, mmuMachine, 0xcafef00d)
		v := engine.Load(0, r.Base, 4, mmuMachine, tlb.Read)
		log.Info("mmio round trip", "region", r.Name, "value", fmt.Sprintf("%#x", v))
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Warn("expected fault recovered", "fault", r)
			}
		}()
		engine.Store(0, cfg.RAMSize+0x1000, 4, mmuUser, 0)
	}()

	log.Info("demo complete")
}
