package trampoline

import (
	"testing"

	"github.com/mszczodrak/renode-min/hostcall"
)

func TestPortDispatch(t *testing.T) {
	cb := hostcall.Default()

	var lastOutByte uint8
	var lastOutWord uint16
	var lastOutDword uint32

	cb.ReadByteFromPort = func(port uint16) uint8 { return uint8(port) }
	cb.ReadWordFromPort = func(port uint16) uint16 { return port }
	cb.ReadDwordFromPort = func(port uint16) uint32 { return uint32(port) }
	cb.WriteByteToPort = func(port uint16, v uint8) { lastOutByte = v }
	cb.WriteWordToPort = func(port uint16, v uint16) { lastOutWord = v }
	cb.WriteDwordToPort = func(port uint16, v uint32) { lastOutDword = v }

	p := New(cb)

	if got := p.InByte(0x3f8); got != 0xf8 {
		t.Errorf("InByte got %#x expected 0xf8", got)
	}
	if got := p.InWord(0x3f8); got != 0x3f8 {
		t.Errorf("InWord got %#x expected 0x3f8", got)
	}
	if got := p.InDword(0x3f8); got != 0x3f8 {
		t.Errorf("InDword got %#x expected 0x3f8", got)
	}

	p.OutByte(0x3f8, 0xab)
	if lastOutByte != 0xab {
		t.Errorf("OutByte got %#x expected 0xab", lastOutByte)
	}
	p.OutWord(0x3f8, 0x1234)
	if lastOutWord != 0x1234 {
		t.Errorf("OutWord got %#x expected 0x1234", lastOutWord)
	}
	p.OutDword(0x3f8, 0xdeadbeef)
	if lastOutDword != 0xdeadbeef {
		t.Errorf("OutDword got %#x expected 0xdeadbeef", lastOutDword)
	}
}
