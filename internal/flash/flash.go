// Package flash implements the sector driver: byte-granular program,
// whole-sector erase, and bounded read over a board's flash layout. No
// operation here is re-entrant, and the caller is responsible for not
// invoking an operation against the address range the currently-executing
// image lives in.
package flash

import "errors"

// Errors mirror the hardware layer's error kinds.
var (
	// ErrBadRange is returned by Erase when either endpoint of the
	// requested range lies outside the board's sector table.
	ErrBadRange = errors.New("flash: address range outside known sectors")
	// ErrNilSource is returned by Program when the source buffer is nil.
	ErrNilSource = errors.New("flash: nil source buffer")
	// ErrOutOfBounds is returned by Program when the destination range
	// does not fall entirely inside the primary or backup slot.
	ErrOutOfBounds = errors.New("flash: destination range outside primary/backup slots")
	// ErrSectorError is returned by Erase when the hardware erase
	// operation reports a sector error.
	ErrSectorError = errors.New("flash: hardware reported sector erase error")
	// ErrProgram is returned by Program when a byte-program step fails.
	ErrProgram = errors.New("flash: program step failed")
	// ErrUnlock / ErrLock are returned when write-enable/write-disable fails.
	ErrUnlock = errors.New("flash: write-enable (unlock) failed")
	ErrLock   = errors.New("flash: write-disable (lock) failed")
)

// Device is the narrow interface the rest of the core consumes for flash
// access. Implementations: Sim (RAM-backed, used by every test) and the
// tinygo-tagged hardware driver used on the real target.
type Device interface {
	// Read performs an unconditional copy from flash into dest. It has no
	// side effects and is callable from any boot FSM state.
	Read(dest []byte, srcAddr uint32) error

	// Erase resolves both endpoints of [startAddr, endAddr) to sector
	// indices and erases every sector the range intersects. It write-
	// enables, invokes the hardware erase, and write-disables regardless
	// of outcome.
	Erase(startAddr, endAddr uint32) error

	// Program writes src to flash starting at dstAddr, one byte at a
	// time. The destination range must fall entirely inside the
	// primary or backup slot.
	Program(src []byte, dstAddr uint32) error
}
