package flash

import (
	"bytes"
	"testing"

	"github.com/gpappasv/stm32-bootloader/internal/boardcfg"
)

func testLayout() boardcfg.Layout {
	return boardcfg.NewSimLayout(4096, 2)
}

func TestSimEraseLeavesAllFF(t *testing.T) {
	layout := testLayout()
	s := NewSim(layout)

	// Dirty the backup slot first.
	payload := bytes.Repeat([]byte{0xAA}, int(layout.BackupSize()))
	if err := s.Program(payload, layout.BackupStart); err != nil {
		t.Fatalf("program: %v", err)
	}

	if err := s.Erase(layout.BackupStart, layout.BackupEnd); err != nil {
		t.Fatalf("erase: %v", err)
	}

	got := make([]byte, layout.BackupSize())
	if err := s.Read(got, layout.BackupStart); err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, b := range got {
		if b != 0xFF {
			t.Fatalf("byte %d = 0x%02x, want 0xFF after erase", i, b)
		}
	}
}

func TestSimProgramThenReadRoundTrip(t *testing.T) {
	// R2: writing payload P and reading the same region back yields P.
	layout := testLayout()
	s := NewSim(layout)

	payload := []byte("0123456789abcdef")
	if err := s.Program(payload, layout.BackupStart); err != nil {
		t.Fatalf("program: %v", err)
	}
	got := make([]byte, len(payload))
	if err := s.Read(got, layout.BackupStart); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read back %q, want %q", got, payload)
	}
}

func TestSimEraseBadRange(t *testing.T) {
	layout := testLayout()
	s := NewSim(layout)

	if err := s.Erase(0, layout.BackupEnd+1); err != ErrBadRange {
		t.Errorf("got %v, want ErrBadRange", err)
	}
}

func TestSimProgramOutOfBounds(t *testing.T) {
	layout := testLayout()
	s := NewSim(layout)

	// Straddles the boundary between primary and backup: not fully
	// contained in either slot.
	addr := layout.PrimaryEnd - 4
	if err := s.Program(make([]byte, 8), addr); err != ErrOutOfBounds {
		t.Errorf("got %v, want ErrOutOfBounds", err)
	}
}

func TestSimProgramNilSource(t *testing.T) {
	layout := testLayout()
	s := NewSim(layout)

	if err := s.Program(nil, layout.PrimaryStart); err != ErrNilSource {
		t.Errorf("got %v, want ErrNilSource", err)
	}
}

func TestSimEraseErasesOnlyIntersectingSectors(t *testing.T) {
	layout := testLayout()
	s := NewSim(layout)

	if err := s.Program(bytes.Repeat([]byte{0x42}, int(layout.PrimarySize())), layout.PrimaryStart); err != nil {
		t.Fatalf("program primary: %v", err)
	}
	if err := s.Program(bytes.Repeat([]byte{0x42}, int(layout.BackupSize())), layout.BackupStart); err != nil {
		t.Fatalf("program backup: %v", err)
	}

	if err := s.Erase(layout.BackupStart, layout.BackupEnd); err != nil {
		t.Fatalf("erase backup: %v", err)
	}

	primary := make([]byte, layout.PrimarySize())
	if err := s.Read(primary, layout.PrimaryStart); err != nil {
		t.Fatalf("read primary: %v", err)
	}
	for _, b := range primary {
		if b != 0x42 {
			t.Fatalf("primary slot byte = 0x%02x, want untouched 0x42", b)
		}
	}
}
