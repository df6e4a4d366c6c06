package ram

import "testing"

// Check New allocates the requested size and rejects zero.
func TestNewSize(t *testing.T) {
	m, err := New(4096)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	if m.Size() != 4096 {
		t.Errorf("Size got: %d expected: %d", m.Size(), 4096)
	}
	if len(m.Bytes()) != 4096 {
		t.Errorf("Bytes length got: %d expected: %d", len(m.Bytes()), 4096)
	}

	if _, err := New(0); err == nil {
		t.Errorf("New(0) expected error, got nil")
	}
}

// Check round trip load/store for all widths.
func TestLoadStoreRoundTrip(t *testing.T) {
	m, err := New(4096)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	cases := []struct {
		width int
		val   uint64
	}{
		{1, 0x7f},
		{2, 0x1234},
		{4, 0xdeadbeef},
		{8, 0x0102030405060708},
	}

	for _, c := range cases {
		m.Store(0, c.width, c.val)
		r := m.Load(0, c.width)
		if r != c.val {
			t.Errorf("width %d: got %#x expected %#x", c.width, r, c.val)
		}
	}
}

// Check InRange bounds.
func TestInRange(t *testing.T) {
	m, err := New(1024)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	if !m.InRange(0, 8) {
		t.Errorf("InRange(0, 8) should be true")
	}
	if !m.InRange(1016, 8) {
		t.Errorf("InRange(1016, 8) should be true")
	}
	if m.InRange(1017, 8) {
		t.Errorf("InRange(1017, 8) should be false")
	}
	if m.InRange(2000, 8) {
		t.Errorf("InRange(2000, 8) should be false")
	}
}
