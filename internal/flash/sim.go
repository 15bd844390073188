package flash

import "github.com/gpappasv/stm32-bootloader/internal/boardcfg"

// Sim is a RAM-backed flash simulator constructed from the same Layout a
// real board uses. It is not build-tag gated: it is plain, portable Go,
// used by every core package's tests.
type Sim struct {
	layout boardcfg.Layout
	base   uint32 // address of mem[0]
	mem    []byte
}

// NewSim allocates a flash image spanning the whole layout (bootloader
// region through the end of the backup slot), initialized to 0xFF — the
// erased state of this flash family.
func NewSim(layout boardcfg.Layout) *Sim {
	base := layout.Sectors[0].Start
	size := layout.BackupEnd - base
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Sim{layout: layout, base: base, mem: mem}
}

// Raw returns the full backing buffer, for test setup/assertions only.
func (s *Sim) Raw() []byte { return s.mem }

// Base returns the address mem[0] corresponds to.
func (s *Sim) Base() uint32 { return s.base }

func (s *Sim) offset(addr uint32) int {
	return int(addr - s.base)
}

func (s *Sim) Read(dest []byte, srcAddr uint32) error {
	off := s.offset(srcAddr)
	if off < 0 || off+len(dest) > len(s.mem) {
		return ErrOutOfBounds
	}
	copy(dest, s.mem[off:off+len(dest)])
	return nil
}

func (s *Sim) Erase(startAddr, endAddr uint32) error {
	startIdx, endIdx, err := s.layout.SectorIndexRange(startAddr, endAddr)
	if err != nil {
		return ErrBadRange
	}
	// The simulator has no write-enable/write-disable step and no failure
	// injection point: it resolves the same sector range the hardware
	// driver does and fills those sectors with 0xFF.
	for i := startIdx; i <= endIdx; i++ {
		sec := s.layout.Sectors[i]
		off := s.offset(sec.Start)
		for j := off; j < off+int(sec.Size); j++ {
			s.mem[j] = 0xFF
		}
	}
	return nil
}

func (s *Sim) Program(src []byte, dstAddr uint32) error {
	if src == nil {
		return ErrNilSource
	}
	if !s.withinSlots(dstAddr, uint32(len(src))) {
		return ErrOutOfBounds
	}
	off := s.offset(dstAddr)
	for i, b := range src {
		s.mem[off+i] = b
	}
	return nil
}

func (s *Sim) withinSlots(addr, n uint32) bool {
	end := addr + n
	inPrimary := addr >= s.layout.PrimaryStart && end <= s.layout.PrimaryEnd
	inBackup := addr >= s.layout.BackupStart && end <= s.layout.BackupEnd
	return inPrimary || inBackup
}
