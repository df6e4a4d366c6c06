// Package trampoline provides thin x86 port-I/O pass-throughs (C6): guest
// `in`/`out` instructions dispatched straight through to the host callback
// surface with no additional policy.
package trampoline

/*
 * renode-min - Host-call trampolines
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

import "github.com/mszczodrak/renode-min/hostcall"

// Ports wraps a Callbacks table to provide the guest-facing in/out entry
// points. It adds nothing beyond dispatch: policy, if any, belongs to the
// host implementation of the callback.
type Ports struct {
	cb hostcall.Callbacks
}

// New wraps cb for port I/O dispatch.
func New(cb hostcall.Callbacks) Ports {
	return Ports{cb: cb}
}

// InByte reads a byte from the given I/O port.
func (p Ports) InByte(port uint16) uint8 { return p.cb.ReadByteFromPort(port) }

// InWord reads a word from the given I/O port.
func (p Ports) InWord(port uint16) uint16 { return p.cb.ReadWordFromPort(port) }

// InDword reads a double word from the given I/O port.
func (p Ports) InDword(port uint16) uint32 { return p.cb.ReadDwordFromPort(port) }

// OutByte writes a byte to the given I/O port.
func (p Ports) OutByte(port uint16, v uint8) { p.cb.WriteByteToPort(port, v) }

// OutWord writes a word to the given I/O port.
func (p Ports) OutWord(port uint16, v uint16) { p.cb.WriteWordToPort(port, v) }

// OutDword writes a double word to the given I/O port.
func (p Ports) OutDword(port uint16, v uint32) { p.cb.WriteDwordToPort(port, v) }
