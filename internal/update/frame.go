// Package update implements the fixed-framing serial update protocol, the
// per-type settings table, and the Idle/Active session state machine.
package update

import (
	"encoding/binary"
	"errors"

	"github.com/gpappasv/stm32-bootloader/internal/integrity"
)

// MsgType is one of the eight fixed protocol message codes.
type MsgType uint8

const (
	FWUGStart MsgType = 1
	FWUGData  MsgType = 2
	FWUGStatus MsgType = 3
	FWUGCancel MsgType = 4
	ReqData    MsgType = 5
	Data       MsgType = 6
	Cmd        MsgType = 7
	OpResult   MsgType = 8
)

func (t MsgType) valid() bool { return t >= FWUGStart && t <= OpResult }

// OpResult codes.
const (
	ResultOK            byte = 0x00
	ResultGenericError  byte = 0xE1
	ResultCRCError      byte = 0xE2
	ResultAuthError     byte = 0xE3
	ResultUnknownMsg    byte = 0xE4
)

// Sub-command codes under MsgType Cmd, restored from original_source's
// com_protocol.h: backup-image maintenance operations layered onto the
// single reserved Cmd message type.
const (
	CmdConfirmBackupImg byte = 0xC0
	CmdTestBackupImg    byte = 0xC1
	CmdValidateBackupImg byte = 0xC2
	CmdEraseBackupImg   byte = 0xC3
)

// Sub-type code under MsgType ReqData/Data, also from original_source.
const DataTypeDebugInfo byte = 0xD0

const (
	headerSize = 2 // type + len
	crcSize    = 2
	minFrameSize = headerSize + crcSize
)

var (
	// ErrFrameTooShort is returned by Decode when len is smaller than the
	// minimum possible frame (header + trailing CRC).
	ErrFrameTooShort = errors.New("update: frame shorter than header+crc")
	// ErrUnknownType is returned by Decode when type is outside 1..8.
	ErrUnknownType = errors.New("update: unknown message type")
	// ErrLengthMismatch is returned when the declared len does not match
	// the number of bytes actually supplied.
	ErrLengthMismatch = errors.New("update: declared len does not match frame bytes")
	// ErrCRCMismatch is returned by Decode when the trailing CRC-16 does
	// not match the computed value; callers emit OP_RESULT(0xE2) for this.
	ErrCRCMismatch = errors.New("update: frame CRC-16 mismatch")
)

// Frame is a decoded protocol frame: type, declared length (header+body+
// crc), and body bytes (excludes the 2-byte header and trailing CRC).
type Frame struct {
	Type MsgType
	Len  uint8
	Body []byte
}

// Decode parses raw into a Frame, validating shape and the trailing
// CRC-16/CCITT (big-endian). It does not dispatch to a handler.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < minFrameSize {
		return Frame{}, ErrFrameTooShort
	}
	typ := MsgType(raw[0])
	declaredLen := raw[1]
	if int(declaredLen) != len(raw) {
		return Frame{}, ErrLengthMismatch
	}
	if !typ.valid() {
		return Frame{}, ErrUnknownType
	}
	if int(declaredLen) < minFrameSize {
		return Frame{}, ErrFrameTooShort
	}

	body := raw[headerSize : len(raw)-crcSize]
	gotCRC := binary.BigEndian.Uint16(raw[len(raw)-crcSize:])
	wantCRC := integrity.CRC16CCITT(raw[:len(raw)-crcSize])
	if gotCRC != wantCRC {
		return Frame{}, ErrCRCMismatch
	}

	return Frame{Type: typ, Len: declaredLen, Body: body}, nil
}

// Encode serializes a frame of the given type and body, computing len and
// the trailing CRC-16/CCITT over everything preceding it.
func Encode(typ MsgType, body []byte) []byte {
	total := headerSize + len(body) + crcSize
	out := make([]byte, total)
	out[0] = byte(typ)
	out[1] = byte(total)
	copy(out[headerSize:], body)
	crc := integrity.CRC16CCITT(out[:total-crcSize])
	binary.BigEndian.PutUint16(out[total-crcSize:], crc)
	return out
}

// typeSettings is the static, closed per-type settings table: whether the
// incoming type is (declared to be) encrypted, and which message type each
// elicits in response.
type typeSettings struct {
	isEncrypted  bool
	responseType MsgType
}

var settingsTable = map[MsgType]typeSettings{
	FWUGStart:  {isEncrypted: false, responseType: FWUGStatus},
	FWUGData:   {isEncrypted: false, responseType: FWUGStatus},
	FWUGCancel: {isEncrypted: false, responseType: FWUGStatus},
	ReqData:    {isEncrypted: false, responseType: Data},
	Cmd:        {isEncrypted: false, responseType: OpResult},
}
