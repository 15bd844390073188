// Package bootlog provides the bootloader's slog.Handler: a thin bridge
// that always writes text to a debug sink and latches the last N records
// into a fixed-size ring buffer readable through Recent. The update
// engine does not read this ring: its REQ_DATA{DEBUG_INF} reply carries
// the boot FSM record (update.DebugInfo) only.
package bootlog

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// ringSize is fixed, not configurable: no heap growth after init.
const ringSize = 16

// entryLen bounds a single ring entry so the whole buffer stays a fixed
// array of fixed-size records.
const entryLen = 64

// Handler bridges slog records to a text sink and to the ring buffer.
// It is safe for concurrent use: Recent may be called while other
// goroutines are still logging.
type Handler struct {
	text slog.Handler

	mu   sync.Mutex
	ring [ringSize][entryLen]byte
	lens [ringSize]int
	next int
	full bool
}

// NewHandler returns a handler that writes formatted text to w (the UART
// debug line on the real target, any io.Writer in tests) and keeps the
// last ringSize records available via Recent.
func NewHandler(w io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{text: slog.NewTextHandler(w, opts)}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.text.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	err := h.text.Handle(ctx, r)
	h.latch(r)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{text: h.text.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{text: h.text.WithGroup(name)}
}

// latch copies a compact "msg key=val ..." rendering of r into the next
// ring slot, truncating to entryLen bytes.
func (h *Handler) latch(r slog.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf [entryLen]byte
	pos := copyStr(buf[:], 0, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		if pos >= len(buf)-1 {
			return false
		}
		buf[pos] = ' '
		pos++
		pos = copyStr(buf[:], pos, a.Key)
		if pos < len(buf) {
			buf[pos] = '='
			pos++
		}
		pos = copyStr(buf[:], pos, a.Value.String())
		return true
	})

	h.ring[h.next] = buf
	h.lens[h.next] = pos
	h.next = (h.next + 1) % ringSize
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns the latched records, oldest first, as plain strings.
// Allocates only in the caller's return slice, not in the hot logging
// path itself.
func (h *Handler) Recent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := h.next
	start := 0
	if h.full {
		count = ringSize
		start = h.next
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		idx := (start + i) % ringSize
		out = append(out, string(h.ring[idx][:h.lens[idx]]))
	}
	return out
}

func copyStr(buf []byte, pos int, s string) int {
	for i := 0; i < len(s) && pos < len(buf); i++ {
		buf[pos] = s[i]
		pos++
	}
	return pos
}
