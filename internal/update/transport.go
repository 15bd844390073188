package update

import (
	"sync"
	"time"
)

// DefaultReceiveGap is the "design target" receive-gap watchdog period:
// if no byte arrives within this window mid-frame, the transport resets
// its own receive state and re-arms rather than wedge on a half-delivered
// frame.
const DefaultReceiveGap = 15 * time.Second

// mailbox is the single-slot ISR-to-foreground handoff: one pending frame
// plus a generation counter. The mutex only serializes access to the slot
// (rather than a channel, so neither side blocks waiting for the other);
// post overwrites a frame that has not been taken yet, so the caller
// pumps each frame before the next one is posted.
type mailbox struct {
	mu         sync.Mutex
	generation uint64
	frame      []byte
	hasFrame   bool
}

func (m *mailbox) post(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = frame
	m.hasFrame = true
	m.generation++
}

// take returns the pending frame (if any) and clears it, along with the
// generation it was posted at.
func (m *mailbox) take() (frame []byte, generation uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasFrame {
		return nil, m.generation, false
	}
	frame, generation, ok = m.frame, m.generation, true
	m.frame, m.hasFrame = nil, false
	return frame, generation, ok
}

// ByteSink is the collaborator a Transport writes encoded response frames
// to; the real target binds this to a UART, tests bind it to a buffer.
type ByteSink interface {
	Write(p []byte) (int, error)
}

// Transport wraps an Engine with a single-slot mailbox and a receive-gap
// watchdog. The byte-reception side either hands over bytes with Feed and
// TryDrainFrame, or posts an already complete frame with Deliver; Pump
// drains the mailbox from the foreground and writes the engine's response
// to out.
type Transport struct {
	engine *Engine
	out    ByteSink
	box    mailbox
	gap    time.Duration

	mu          sync.Mutex
	lastByteAt  time.Time
	partial     []byte
}

// NewTransport returns a transport around engine, writing responses to
// out, with the given receive-gap watchdog period (DefaultReceiveGap if
// gap is 0).
func NewTransport(engine *Engine, out ByteSink, gap time.Duration) *Transport {
	if gap == 0 {
		gap = DefaultReceiveGap
	}
	return &Transport{engine: engine, out: out, gap: gap}
}

// Deliver posts a complete, already-framed byte sequence to the mailbox
// for foreground processing. It overwrites any frame not yet drained: the
// producer side only does this once the foreground has finished the
// previous frame, so in practice there is never more than one pending
// frame.
func (t *Transport) Deliver(frame []byte) {
	t.mu.Lock()
	t.lastByteAt = time.Time{}
	t.partial = nil
	t.mu.Unlock()
	t.box.post(frame)
}

// Feed appends incoming bytes to the in-progress receive buffer and
// checks the gap watchdog; call this once per received byte (or per
// burst of bytes) from the ISR side. now is supplied by the caller so
// tests can drive the watchdog deterministically.
func (t *Transport) Feed(b []byte, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.lastByteAt.IsZero() && now.Sub(t.lastByteAt) > t.gap {
		t.partial = nil
	}
	t.partial = append(t.partial, b...)
	t.lastByteAt = now
}

// TryDrainFrame checks whether the accumulated partial buffer contains a
// complete frame (declared len reached) and, if so, moves it to the
// mailbox and trims the partial buffer.
func (t *Transport) TryDrainFrame() {
	t.mu.Lock()
	if len(t.partial) < 2 {
		t.mu.Unlock()
		return
	}
	declaredLen := int(t.partial[1])
	if declaredLen < headerSize {
		declaredLen = headerSize // consume at least the header so a bogus len cannot stall the buffer
	}
	if len(t.partial) < declaredLen {
		t.mu.Unlock()
		return
	}
	frame := append([]byte(nil), t.partial[:declaredLen]...)
	t.partial = t.partial[declaredLen:]
	if len(t.partial) == 0 {
		t.lastByteAt = time.Time{}
	}
	t.mu.Unlock()
	t.box.post(frame)
}

// CheckGap resets the in-progress receive state if the gap watchdog has
// elapsed since the last byte, without requiring a new byte to arrive;
// call this periodically (e.g. on a timer tick) so a stalled sender
// cannot wedge the transport indefinitely.
func (t *Transport) CheckGap(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.lastByteAt.IsZero() && now.Sub(t.lastByteAt) > t.gap {
		t.partial = nil
		t.lastByteAt = time.Time{}
	}
}

// Pump drains one pending frame (if any) through the engine and writes
// the response to out. Returns false if there was nothing to drain.
func (t *Transport) Pump() bool {
	frame, _, ok := t.box.take()
	if !ok {
		return false
	}
	resp := t.engine.HandleFrame(frame)
	if t.out != nil {
		_, _ = t.out.Write(resp)
	}
	return true
}
