package update

import (
	"bytes"
	"testing"
	"time"

	"github.com/gpappasv/stm32-bootloader/internal/boardcfg"
	"github.com/gpappasv/stm32-bootloader/internal/flash"
	"github.com/gpappasv/stm32-bootloader/internal/integrity"
	"github.com/gpappasv/stm32-bootloader/internal/slot"
)

func newTestTransport(t *testing.T) (*Transport, *bytes.Buffer) {
	t.Helper()
	layout := boardcfg.NewSimLayout(256, 4)
	sim := flash.NewSim(layout)
	mgr := slot.NewManager(sim, layout)
	var pub [64]byte
	eng := NewEngine(mgr, integrity.StdHasher{}, integrity.ECDSAP256Verifier{}, pub, DebugInfo{})
	out := &bytes.Buffer{}
	return NewTransport(eng, out, 15*time.Second), out
}

func TestTransportDeliverAndPump(t *testing.T) {
	tr, out := newTestTransport(t)
	tr.Deliver(Encode(FWUGCancel, nil))

	if !tr.Pump() {
		t.Fatal("Pump() = false, want true (frame was delivered)")
	}
	if out.Len() == 0 {
		t.Fatal("no response written")
	}
	f, err := Decode(out.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != FWUGStatus {
		t.Errorf("response type = %v, want FWUGStatus", f.Type)
	}
}

func TestTransportPumpFalseWhenEmpty(t *testing.T) {
	tr, _ := newTestTransport(t)
	if tr.Pump() {
		t.Error("Pump() = true on empty mailbox, want false")
	}
}

func TestTransportFeedAndDrainAssemblesFrame(t *testing.T) {
	tr, out := newTestTransport(t)
	frame := Encode(FWUGCancel, nil)

	base := time.Unix(1000, 0)
	tr.Feed(frame[:1], base)
	tr.TryDrainFrame()
	if tr.Pump() {
		t.Fatal("Pump() = true before full frame was fed")
	}

	tr.Feed(frame[1:], base.Add(time.Second))
	tr.TryDrainFrame()
	if !tr.Pump() {
		t.Fatal("Pump() = false after full frame was fed")
	}
	if out.Len() == 0 {
		t.Fatal("no response written")
	}
}

// The receive-gap watchdog must discard a stalled partial frame rather
// than let it wedge the transport waiting for the rest of an earlier,
// abandoned frame: a fresh complete frame arriving afterwards must be
// parsed on its own, not prefixed with the abandoned bytes.
func TestTransportGapWatchdogDropsStalePartial(t *testing.T) {
	tr, out := newTestTransport(t)
	stale := Encode(FWUGCancel, nil)
	fresh := Encode(FWUGStart, nil)

	base := time.Unix(2000, 0)
	tr.Feed(stale[:1], base)
	tr.CheckGap(base.Add(20 * time.Second)) // well past the 15s gap

	tr.Feed(fresh, base.Add(20*time.Second))
	tr.TryDrainFrame()
	if !tr.Pump() {
		t.Fatal("Pump() = false, want true: the fresh frame should have been parsed on its own")
	}
	f, err := Decode(out.Bytes())
	if err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if f.Type != FWUGStatus {
		t.Errorf("response type = %v, want FWUGStatus (from the fresh FWUG_START)", f.Type)
	}
}
