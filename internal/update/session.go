package update

import (
	"encoding/binary"

	"github.com/gpappasv/stm32-bootloader/internal/integrity"
	"github.com/gpappasv/stm32-bootloader/internal/slot"
)

// PayloadChunkSize is the fixed FWUG_DATA payload size a host-side pusher
// must split firmware images into; exported so cmd/bootctl can chunk
// without duplicating the constant.
const PayloadChunkSize = 128
const payloadChunkSize = PayloadChunkSize

// Session is the update engine's Idle/Active state: created on a
// successful FWUG_START, mutated only by the update engine, destroyed on
// reset, on FWUG_CANCEL, or implicitly when the boot FSM leaves recovery.
type Session struct {
	Active          bool
	PacketsReceived uint32
}

// DebugInfo is the record REQ_DATA{DEBUG_INF} returns: a read path into
// the previous boot's decision, independent of the update session itself.
type DebugInfo struct {
	PacketsReceived uint32
	LastBootState   uint8
	NewerOnBackup   bool
	RecoverPrimary  bool
}

// Engine is the synchronous, pure core of the update protocol: HandleFrame
// takes a raw frame and returns the raw response frame, with no goroutines
// or I/O of its own. Transport (in transport.go) adds the ISR mailbox and
// gap watchdog around this on the real target.
type Engine struct {
	slots    *slot.Manager
	session  Session
	hasher   integrity.Hasher
	verifier integrity.Verifier
	pubKey   [64]byte
	debug    DebugInfo
}

// NewEngine returns an engine bound to slots for backup erase/program,
// using hasher/verifier/pubKey for the VALIDATE_BACKUP_IMG sub-command,
// and debug as the snapshot served by REQ_DATA{DEBUG_INF}.
func NewEngine(slots *slot.Manager, hasher integrity.Hasher, verifier integrity.Verifier, pubKey [64]byte, debug DebugInfo) *Engine {
	return &Engine{slots: slots, hasher: hasher, verifier: verifier, pubKey: pubKey, debug: debug}
}

// Session reports the engine's current session state, for tests and for
// FWUG_STATUS bodies built outside HandleFrame.
func (e *Engine) Session() Session { return e.session }

// HandleFrame implements the receive pipeline for a single raw frame
// (decode, validate, decrypt-if-declared, dispatch) and returns the raw
// response frame to transmit.
func (e *Engine) HandleFrame(raw []byte) []byte {
	f, err := Decode(raw)
	if err != nil {
		if err == ErrCRCMismatch {
			return e.opResult(ResultCRCError)
		}
		// malformed / unknown type: step 1, do not touch session state
		return e.opResult(ResultUnknownMsg)
	}

	settings, known := settingsTable[f.Type]
	if !known {
		return e.opResult(ResultUnknownMsg)
	}
	if settings.isEncrypted {
		decryptInPlace(f.Body)
	}

	switch f.Type {
	case FWUGStart:
		return e.handleStart()
	case FWUGData:
		return e.handleData(f.Body)
	case FWUGCancel:
		return e.handleCancel()
	case ReqData:
		return e.handleReqData(f.Body)
	case Cmd:
		return e.handleCmd(f.Body)
	default:
		return e.opResult(ResultUnknownMsg)
	}
}

// decryptInPlace is the identity transform applied to a declared-encrypted
// body until a real decryption collaborator is wired in; no current
// message type actually sets isEncrypted, so this is presently
// unreachable but kept as the documented extension point.
func decryptInPlace(body []byte) {}

func (e *Engine) handleStart() []byte {
	if e.session.Active {
		return e.status(ResultGenericError)
	}
	if err := e.slots.EraseBackup(); err != nil {
		return e.status(ResultGenericError)
	}
	e.session = Session{Active: true, PacketsReceived: 0}
	return e.status(ResultOK)
}

func (e *Engine) handleData(body []byte) []byte {
	if !e.session.Active {
		return e.status(ResultGenericError)
	}
	if len(body) != 4+payloadChunkSize {
		return e.status(ResultGenericError)
	}
	packetNumber := binary.LittleEndian.Uint32(body[:4])
	if packetNumber != e.session.PacketsReceived {
		return e.status(ResultGenericError)
	}
	payload := body[4:]

	addr := e.backupStart() + e.session.PacketsReceived*payloadChunkSize
	if err := e.slots.ProgramAt(slot.Backup, addr, payload); err != nil {
		return e.status(ResultGenericError)
	}
	e.session.PacketsReceived++
	return e.status(ResultOK)
}

func (e *Engine) handleCancel() []byte {
	e.session = Session{}
	return e.status(ResultOK)
}

func (e *Engine) handleReqData(body []byte) []byte {
	if len(body) < 1 || body[0] != DataTypeDebugInfo {
		return e.opResult(ResultUnknownMsg)
	}
	out := make([]byte, 7)
	binary.LittleEndian.PutUint32(out[0:4], e.debug.PacketsReceived)
	out[4] = e.debug.LastBootState
	out[5] = boolByte(e.debug.NewerOnBackup)
	out[6] = boolByte(e.debug.RecoverPrimary)
	return Encode(Data, out)
}

func (e *Engine) handleCmd(body []byte) []byte {
	if len(body) < 1 {
		return e.opResult(ResultUnknownMsg)
	}
	switch body[0] {
	case CmdValidateBackupImg:
		return e.opResult(e.validateBackup())
	case CmdEraseBackupImg:
		if err := e.slots.EraseBackup(); err != nil {
			return e.opResult(ResultGenericError)
		}
		return e.opResult(ResultOK)
	case CmdConfirmBackupImg, CmdTestBackupImg:
		return e.opResult(ResultUnknownMsg)
	default:
		return e.opResult(ResultUnknownMsg)
	}
}

func (e *Engine) validateBackup() byte {
	h, err := e.slots.ReadHeader(slot.Backup)
	if err != nil {
		return ResultGenericError
	}
	payload, err := e.slots.ReadPayload(slot.Backup)
	if err != nil {
		return ResultGenericError
	}
	gate, err := integrity.VerifyPayload(payload, h.CRC32, h.SHA256, h.Signature, e.pubKey, e.hasher, e.verifier)
	if err != nil {
		_ = gate
		return ResultAuthError
	}
	return ResultOK
}

func (e *Engine) status(result byte) []byte {
	body := make([]byte, 4)
	body[0] = result
	body[1] = boolByte(e.session.Active)
	binary.LittleEndian.PutUint16(body[2:], uint16(e.session.PacketsReceived))
	return Encode(FWUGStatus, body)
}

func (e *Engine) opResult(result byte) []byte {
	return Encode(OpResult, []byte{result})
}

func (e *Engine) backupStart() uint32 {
	start, _ := e.slots.Bounds(slot.Backup)
	return start
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
