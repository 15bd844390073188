// Package bootfsm implements the boot decision state machine: a
// data-driven transition table over five states and four events, driving
// candidate-slot selection, CRC/auth verification, and the handoff to the
// resident application.
package bootfsm

import (
	"fmt"

	"github.com/gpappasv/stm32-bootloader/internal/integrity"
	"github.com/gpappasv/stm32-bootloader/internal/slot"
)

type State int

const (
	None State = iota
	Init
	CRCCheck
	Auth
	BootApp
	Bootloop
)

func (s State) String() string {
	switch s {
	case None:
		return "NONE"
	case Init:
		return "INIT"
	case CRCCheck:
		return "CRC_CHECK"
	case Auth:
		return "AUTH"
	case BootApp:
		return "BOOT_APP"
	case Bootloop:
		return "BOOTLOOP"
	default:
		return "UNKNOWN"
	}
}

type Event int

const (
	EventNoneOrErr Event = iota
	EventCheckPass
	EventCheckFail
	EventButtonPressed
)

func (e Event) String() string {
	switch e {
	case EventNoneOrErr:
		return "NONE_OR_ERR"
	case EventCheckPass:
		return "CHECK_PASS"
	case EventCheckFail:
		return "CHECK_FAIL"
	case EventButtonPressed:
		return "BUTTON_PRESSED"
	default:
		return "UNKNOWN"
	}
}

// Context is the boot FSM's working state: current state, the two
// pivot latches, and which slot is presently the candidate under
// evaluation.
type Context struct {
	State          State
	NewerOnBackup  bool
	RecoverPrimary bool
	Candidate      slot.Slot
}

// transitionTable mirrors original_source's bl_fsm_map: unlisted cells
// terminate boot (no viable transition, a fatal condition the caller
// logs and surfaces as an error from Run).
var transitionTable = map[State]map[Event]State{
	None: {
		EventNoneOrErr: Init,
	},
	Init: {
		EventNoneOrErr:     CRCCheck,
		EventButtonPressed: Bootloop,
	},
	CRCCheck: {
		EventNoneOrErr: Bootloop,
		EventCheckPass: Auth,
		EventCheckFail: CRCCheck,
	},
	Auth: {
		EventNoneOrErr: Bootloop,
		EventCheckPass: BootApp,
		EventCheckFail: CRCCheck,
	},
	BootApp: {
		EventNoneOrErr:     Bootloop,
		EventCheckPass:     Bootloop,
		EventCheckFail:     Bootloop,
		EventButtonPressed: Bootloop,
	},
	Bootloop: {
		EventNoneOrErr: Bootloop,
	},
}

// UserInput reports whether the recovery-mode button is held at boot.
type UserInput interface {
	IsPressed() bool
}

// SystemHandoff is the collaborator BootApp drives to jump into the
// resident application: install the initial stack pointer, then
// deinitialise peripherals/relocate vectors/lock the MPU and branch to
// the reset vector. In production PrepareForApplication never returns;
// Run treats reaching BootApp as terminal regardless.
type SystemHandoff interface {
	SetMSP(addr uint32)
	PrepareForApplication()
}

// Clock provides the BOOTLOOP idle's pacing delay.
type Clock interface {
	DelayMS(ms uint32)
}

// Machine is the boot decision state machine, bound to its collaborators.
type Machine struct {
	Slots    *slot.Manager
	Hasher   integrity.Hasher
	Verifier integrity.Verifier
	PubKey   [64]byte
	Input    UserInput
	Handoff  SystemHandoff
	Guard    slot.InterruptGuard
}

// Run drives the state machine from NONE to a terminal state (BOOT_APP
// or BOOTLOOP) and returns it. An error is returned only for a fatal,
// unlisted transition — callers should treat that as "enter BOOTLOOP",
// since an unlisted cell means boot terminates with a fatal log.
func (m *Machine) Run(ctx *Context) (State, error) {
	ctx.State = None
	event := EventNoneOrErr

	for {
		row, ok := transitionTable[ctx.State]
		if !ok {
			return ctx.State, fmt.Errorf("bootfsm: no transitions defined for state %s", ctx.State)
		}
		next, ok := row[event]
		if !ok {
			return ctx.State, fmt.Errorf("bootfsm: no transition from %s on %s", ctx.State, event)
		}
		ctx.State = next

		switch next {
		case BootApp:
			m.handleBootApp(ctx)
			return BootApp, nil
		case Bootloop:
			return Bootloop, nil
		}

		handler, ok := handlers[next]
		if !ok {
			return ctx.State, fmt.Errorf("bootfsm: no handler registered for state %s", next)
		}
		event = handler(m, ctx)
	}
}

var handlers = map[State]func(*Machine, *Context) Event{
	Init:     (*Machine).handleInit,
	CRCCheck: (*Machine).handleCRCCheck,
	Auth:     (*Machine).handleAuth,
}

func (m *Machine) handleInit(ctx *Context) Event {
	ctx.NewerOnBackup = m.Slots.IsBackupNewer()
	if ctx.NewerOnBackup {
		ctx.Candidate = slot.Backup
	} else {
		ctx.Candidate = slot.Primary
	}
	if m.Input.IsPressed() {
		return EventButtonPressed
	}
	return EventNoneOrErr
}

func (m *Machine) handleCRCCheck(ctx *Context) Event {
	header, err := m.Slots.ReadHeader(ctx.Candidate)
	if err != nil {
		return m.pivotOrFatal(ctx)
	}
	payload, err := m.Slots.ReadPayload(ctx.Candidate)
	if err != nil {
		return m.pivotOrFatal(ctx)
	}
	if integrity.CRC32IEEE(payload) != header.CRC32 {
		return m.pivotOrFatal(ctx)
	}
	return EventCheckPass
}

func (m *Machine) handleAuth(ctx *Context) Event {
	header, err := m.Slots.ReadHeader(ctx.Candidate)
	if err != nil {
		return m.pivotOrFatal(ctx)
	}
	payload, err := m.Slots.ReadPayload(ctx.Candidate)
	if err != nil {
		return m.pivotOrFatal(ctx)
	}
	if m.Hasher.Sum256(payload) != header.SHA256 {
		return m.pivotOrFatal(ctx)
	}
	if !m.Verifier.Verify(m.PubKey, header.SHA256, header.Signature) {
		return m.pivotOrFatal(ctx)
	}

	if ctx.Candidate == slot.Backup {
		if err := m.Slots.PromoteBackupToPrimary(m.Guard); err != nil {
			return m.pivotOrFatal(ctx)
		}
	}
	return EventCheckPass
}

func (m *Machine) handleBootApp(ctx *Context) {
	primaryStart, _ := m.Slots.Bounds(slot.Primary)
	m.Handoff.SetMSP(primaryStart)
	m.Handoff.PrepareForApplication()
}

// pivotOrFatal implements the CRC_CHECK/AUTH failure pivot policy: first
// abandon a newer-backup candidate and fall back to primary; then, on a
// primary-targeted failure, try the backup as a recovery source; once
// both have been tried and failed, there is no viable candidate left and
// the boot is fatal.
func (m *Machine) pivotOrFatal(ctx *Context) Event {
	switch {
	case ctx.NewerOnBackup:
		ctx.NewerOnBackup = false
		ctx.Candidate = slot.Primary
		return EventCheckFail
	case ctx.Candidate == slot.Primary && !ctx.RecoverPrimary:
		ctx.RecoverPrimary = true
		ctx.Candidate = slot.Backup
		return EventCheckFail
	default:
		return EventNoneOrErr
	}
}
