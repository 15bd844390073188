package slot

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gpappasv/stm32-bootloader/internal/boardcfg"
	"github.com/gpappasv/stm32-bootloader/internal/flash"
)

func newTestManager(t *testing.T) (*Manager, *flash.Sim, boardcfg.Layout) {
	t.Helper()
	layout := boardcfg.NewSimLayout(256, 4)
	sim := flash.NewSim(layout)
	return NewManager(sim, layout), sim, layout
}

type fakeGuard struct {
	events []string
}

func (g *fakeGuard) Disable() { g.events = append(g.events, "disable") }
func (g *fakeGuard) Enable()  { g.events = append(g.events, "enable") }

func TestBoundsMatchLayout(t *testing.T) {
	m, _, layout := newTestManager(t)
	start, end := m.Bounds(Primary)
	if start != layout.PrimaryStart || end != layout.PrimaryEnd {
		t.Errorf("Bounds(Primary) = (%d,%d), want (%d,%d)", start, end, layout.PrimaryStart, layout.PrimaryEnd)
	}
	start, end = m.Bounds(Backup)
	if start != layout.BackupStart || end != layout.BackupEnd {
		t.Errorf("Bounds(Backup) = (%d,%d), want (%d,%d)", start, end, layout.BackupStart, layout.BackupEnd)
	}
}

func TestWriteHeaderThenReadHeaderRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)
	want := Header{FWVersion: 7, CRC32: 0x1234, SHA256: [32]byte{1, 2, 3}, Signature: [64]byte{9, 9}}
	if err := m.WriteHeader(Primary, want); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	got, err := m.ReadHeader(Primary)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadHeader mismatch (-want +got):\n%s", diff)
	}
}

// P7: equal versions must not report the backup as newer.
func TestIsBackupNewerEqualVersionsFalse(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.WriteHeader(Primary, Header{FWVersion: 3}); err != nil {
		t.Fatalf("WriteHeader primary: %v", err)
	}
	if err := m.WriteHeader(Backup, Header{FWVersion: 3}); err != nil {
		t.Fatalf("WriteHeader backup: %v", err)
	}
	if m.IsBackupNewer() {
		t.Error("IsBackupNewer() = true for equal versions, want false")
	}
}

func TestIsBackupNewerStrictlyGreater(t *testing.T) {
	m, _, _ := newTestManager(t)
	_ = m.WriteHeader(Primary, Header{FWVersion: 3})
	_ = m.WriteHeader(Backup, Header{FWVersion: 4})
	if !m.IsBackupNewer() {
		t.Error("IsBackupNewer() = false, want true")
	}
	_ = m.WriteHeader(Backup, Header{FWVersion: 2})
	if m.IsBackupNewer() {
		t.Error("IsBackupNewer() = true for older backup, want false")
	}
}

// P3: after an erase, the backup slot reads as all 0xFF.
func TestEraseBackupAllFF(t *testing.T) {
	m, sim, layout := newTestManager(t)
	_ = m.WriteHeader(Backup, Header{FWVersion: 1})
	if err := m.EraseBackup(); err != nil {
		t.Fatalf("EraseBackup: %v", err)
	}
	raw := make([]byte, layout.BackupEnd-layout.BackupStart)
	if err := sim.Read(raw, layout.BackupStart); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, b := range raw {
		if b != 0xFF {
			t.Fatalf("byte %d = 0x%02x, want 0xFF", i, b)
		}
	}
}

// Promotion's critical section must disable interrupts before touching
// flash and re-enable them only after the copy completes.
func TestPromoteBackupToPrimaryGuardOrder(t *testing.T) {
	m, _, layout := newTestManager(t)
	payload := bytes.Repeat([]byte{0xAB}, int(layout.BackupEnd-layout.BackupStart))
	// Program backup directly (bypassing WriteHeader) so payload+header
	// both get copied across verbatim.
	if err := m.dev.Program(payload, layout.BackupStart); err != nil {
		t.Fatalf("seed backup: %v", err)
	}

	guard := &fakeGuard{}
	if err := m.PromoteBackupToPrimary(guard); err != nil {
		t.Fatalf("PromoteBackupToPrimary: %v", err)
	}
	if len(guard.events) != 2 || guard.events[0] != "disable" || guard.events[1] != "enable" {
		t.Errorf("guard events = %v, want [disable enable]", guard.events)
	}

	got := make([]byte, layout.PrimaryEnd-layout.PrimaryStart)
	if err := m.dev.Read(got, layout.PrimaryStart); err != nil {
		t.Fatalf("read primary: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("primary does not match backup after promotion")
	}
}

func TestPromoteBackupToPrimaryRejectsSizeMismatch(t *testing.T) {
	layout := boardcfg.NewSimLayout(256, 4)
	layout.BackupEnd += 256 // desynchronize backup size from primary
	sim := flash.NewSim(layout)
	m := NewManager(sim, layout)
	err := m.PromoteBackupToPrimary(&fakeGuard{})
	if err != ErrSizeMismatch {
		t.Errorf("err = %v, want ErrSizeMismatch", err)
	}
}
