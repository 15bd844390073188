package boardcfg

// NewSimLayout builds a small, fast layout for use with the RAM-backed
// flash simulator in tests: two bootloader sectors, then sectorsPerSlot
// sectors of sectorSize bytes each for primary, then the same again for
// backup. Mirrors the shape of DefaultSTM32F401RELayout without the real
// board's large sector sizes slowing tests down.
func NewSimLayout(sectorSize uint32, sectorsPerSlot int) Layout {
	var sectors []SectorSpec
	addr := uint32(0)
	add := func(n int) {
		for i := 0; i < n; i++ {
			sectors = append(sectors, SectorSpec{Start: addr, Size: sectorSize})
			addr += sectorSize
		}
	}

	add(2) // bootloader
	bootloaderEnd := addr
	add(sectorsPerSlot)
	primaryEnd := addr
	primaryStart := bootloaderEnd
	add(sectorsPerSlot)
	backupEnd := addr
	backupStart := primaryEnd

	return Layout{
		Sectors:       sectors,
		BootloaderEnd: bootloaderEnd,
		PrimaryStart:  primaryStart,
		PrimaryEnd:    primaryEnd,
		BackupStart:   backupStart,
		BackupEnd:     backupEnd,
		FWVersionSize: 4,
		CRC32Size:     4,
		SHA256Size:    32,
		SignatureSize: 64,
	}
}
