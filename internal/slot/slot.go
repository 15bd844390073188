// Package slot maps address ranges to the primary and backup slots,
// parses the in-image trailer header, and implements the atomic
// backup-to-primary promotion protocol.
package slot

import (
	"encoding/binary"
	"errors"

	"github.com/go-restruct/restruct"

	"github.com/gpappasv/stm32-bootloader/internal/boardcfg"
	"github.com/gpappasv/stm32-bootloader/internal/flash"
)

// Slot identifies which of the two flash regions an operation targets.
type Slot int

const (
	Primary Slot = iota
	Backup
)

func (s Slot) String() string {
	if s == Primary {
		return "primary"
	}
	return "backup"
}

// Header is the fixed trailer written at the tail of every slot: firmware
// version, image CRC-32, image SHA-256, and the ECDSA-P256 signature over
// the hash, stored r||s.
type Header struct {
	FWVersion uint32
	CRC32     uint32
	SHA256    [32]byte
	Signature [64]byte
}

var byteOrder = binary.LittleEndian

// ErrSizeMismatch is returned by PromoteBackupToPrimary when the layout's
// primary and backup slots are not the same size; promotion refuses to run
// rather than leave primary partially programmed.
var ErrSizeMismatch = errors.New("slot: primary and backup sizes differ")

// ErrPromotionFailed wraps any error that occurred inside the promotion
// critical section. The bootloader deliberately does not attempt to
// restore primary when this happens: a half-programmed primary will be
// rediscovered as a CRC failure on the next boot, which is itself the
// recovery path.
var ErrPromotionFailed = errors.New("slot: promotion failed")

// InterruptGuard brackets the atomic copy protocol's critical section. On
// the real target this maps to disabling/enabling the global interrupt
// mask; in tests it is a fake that records call order.
type InterruptGuard interface {
	Disable()
	Enable()
}

// Manager is bound to a flash device and the board's slot geometry.
type Manager struct {
	dev    flash.Device
	layout boardcfg.Layout
}

// NewManager returns a slot manager over dev using layout's geometry.
func NewManager(dev flash.Device, layout boardcfg.Layout) *Manager {
	return &Manager{dev: dev, layout: layout}
}

// Bounds returns the start (inclusive) and end (exclusive) address of slot.
func (m *Manager) Bounds(slot Slot) (start, end uint32) {
	if slot == Primary {
		return m.layout.PrimaryStart, m.layout.PrimaryEnd
	}
	return m.layout.BackupStart, m.layout.BackupEnd
}

// PayloadBounds returns the start (inclusive) and end (exclusive) address
// of slot's payload region, i.e. the slot minus the trailing header.
func (m *Manager) PayloadBounds(slot Slot) (start, end uint32) {
	start, end = m.Bounds(slot)
	return start, end - m.layout.TrailerSize()
}

// ReadHeader reads and unpacks the trailer header from the tail of slot.
func (m *Manager) ReadHeader(slot Slot) (Header, error) {
	_, slotEnd := m.Bounds(slot)
	raw := make([]byte, m.layout.TrailerSize())
	if err := m.dev.Read(raw, slotEnd-m.layout.TrailerSize()); err != nil {
		return Header{}, err
	}
	var h Header
	if err := restruct.Unpack(raw, byteOrder, &h); err != nil {
		return Header{}, err
	}
	return h, nil
}

// ReadPayload reads the payload bytes (everything in slot before the
// trailer header) into a freshly allocated slice.
func (m *Manager) ReadPayload(slot Slot) ([]byte, error) {
	start, end := m.PayloadBounds(slot)
	buf := make([]byte, end-start)
	if err := m.dev.Read(buf, start); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteHeader packs and programs h into the tail of slot. Production
// images carry their header as the last bytes of the uploaded stream;
// this is a convenience used by tests and by host tooling that stages a
// full image (payload+header) in one call.
func (m *Manager) WriteHeader(slot Slot, h Header) error {
	raw, err := restruct.Pack(byteOrder, &h)
	if err != nil {
		return err
	}
	_, slotEnd := m.Bounds(slot)
	return m.dev.Program(raw, slotEnd-m.layout.TrailerSize())
}

// ProgramAt programs data at the given absolute flash address, which must
// fall inside slot's bounds; used by the update engine to stream
// FWUG_DATA payload chunks into the backup slot at their packet offset.
func (m *Manager) ProgramAt(s Slot, addr uint32, data []byte) error {
	return m.dev.Program(data, addr)
}

// IsBackupNewer reports whether the backup slot's FW_VERSION is strictly
// greater than primary's. Equal versions report false: a re-upload of the
// same version never triggers promotion on its own.
func (m *Manager) IsBackupNewer() bool {
	primary, err := m.ReadHeader(Primary)
	if err != nil {
		return false
	}
	backup, err := m.ReadHeader(Backup)
	if err != nil {
		return false
	}
	return backup.FWVersion > primary.FWVersion
}

// EraseBackup erases the entire backup slot, leaving it all 0xFF.
func (m *Manager) EraseBackup() error {
	start, end := m.Bounds(Backup)
	return m.dev.Erase(start, end)
}

// PromoteBackupToPrimary runs the atomic copy protocol: assert equal slot
// sizes, disable interrupts, erase primary, program primary from backup
// byte-by-byte, re-enable interrupts. Any failure inside the critical
// section is reported as ErrPromotionFailed and primary is left in
// whatever state the failed erase/program left it — recovery happens on
// the next boot via the ordinary CRC-check path, not here.
func (m *Manager) PromoteBackupToPrimary(guard InterruptGuard) error {
	primaryStart, primaryEnd := m.Bounds(Primary)
	backupStart, backupEnd := m.Bounds(Backup)
	if primaryEnd-primaryStart != backupEnd-backupStart {
		return ErrSizeMismatch
	}

	guard.Disable()
	defer guard.Enable()

	if err := m.dev.Erase(primaryStart, primaryEnd); err != nil {
		return errors.Join(ErrPromotionFailed, err)
	}

	backupImage := make([]byte, backupEnd-backupStart)
	if err := m.dev.Read(backupImage, backupStart); err != nil {
		return errors.Join(ErrPromotionFailed, err)
	}
	if err := m.dev.Program(backupImage, primaryStart); err != nil {
		return errors.Join(ErrPromotionFailed, err)
	}
	return nil
}
