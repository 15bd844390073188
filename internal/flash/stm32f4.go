//go:build tinygo

package flash

/*
#include <stdint.h>
#include <stdbool.h>

// Minimal STM32F4 FLASH peripheral register access, adapted from the
// retrieved reference bootloader's flash_driver.c (which called into the
// STM32 HAL). TinyGo's machine package does not expose flash program/erase
// for this family, so the bootloader talks to the FLASH peripheral
// registers directly, the same way a bare-metal driver bypasses
// TinyGo's machine.Flash when a part's flash controller isn't covered.

#define FLASH_BASE      0x40023C00u
#define FLASH_KEYR      (*(volatile uint32_t *)(FLASH_BASE + 0x04))
#define FLASH_SR        (*(volatile uint32_t *)(FLASH_BASE + 0x0C))
#define FLASH_CR        (*(volatile uint32_t *)(FLASH_BASE + 0x10))

#define FLASH_KEY1      0x45670123u
#define FLASH_KEY2      0xCDEF89ABu

#define FLASH_CR_PG     (1u << 0)
#define FLASH_CR_SER    (1u << 1)
#define FLASH_CR_STRT   (1u << 16)
#define FLASH_CR_LOCK   (1u << 31)
#define FLASH_CR_PSIZE_BYTE (0u << 8)

#define FLASH_SR_BSY    (1u << 16)
#define FLASH_SR_ERRORS (0x000000F0u) // PGSERR|PGPERR|PGAERR|WRPERR

static void flash_wait_busy(void) {
    while (FLASH_SR & FLASH_SR_BSY) {}
}

static int stm32_flash_unlock(void) {
    if (!(FLASH_CR & FLASH_CR_LOCK)) {
        return 0;
    }
    FLASH_KEYR = FLASH_KEY1;
    FLASH_KEYR = FLASH_KEY2;
    return (FLASH_CR & FLASH_CR_LOCK) ? -1 : 0;
}

static int stm32_flash_lock(void) {
    FLASH_CR |= FLASH_CR_LOCK;
    return 0;
}

static int stm32_flash_erase_sector(int sectorIdx) {
    flash_wait_busy();
    FLASH_SR = FLASH_SR_ERRORS; // clear any stale error flags
    FLASH_CR = FLASH_CR_SER | ((uint32_t)sectorIdx << 3);
    FLASH_CR |= FLASH_CR_STRT;
    flash_wait_busy();
    FLASH_CR &= ~FLASH_CR_SER;
    return (FLASH_SR & FLASH_SR_ERRORS) ? -1 : 0;
}

static int stm32_flash_program_byte(uint32_t addr, uint8_t val) {
    flash_wait_busy();
    FLASH_SR = FLASH_SR_ERRORS;
    FLASH_CR = FLASH_CR_PG | FLASH_CR_PSIZE_BYTE;
    *(volatile uint8_t *)addr = val;
    flash_wait_busy();
    FLASH_CR &= ~FLASH_CR_PG;
    return (FLASH_SR & FLASH_SR_ERRORS) ? -1 : 0;
}
*/
import "C"

import (
	"unsafe"

	"github.com/gpappasv/stm32-bootloader/internal/boardcfg"
)

// STM32F4 is the real hardware driver for the STM32F401RE reference
// target. It implements Device by talking to the FLASH peripheral
// registers directly, the byte-program/sector-erase discipline described
// in original_source/.../flash_driver.c.
type STM32F4 struct {
	layout boardcfg.Layout
}

// NewSTM32F4 returns a hardware flash driver bound to layout.
func NewSTM32F4(layout boardcfg.Layout) *STM32F4 {
	return &STM32F4{layout: layout}
}

func (d *STM32F4) Read(dest []byte, srcAddr uint32) error {
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(srcAddr))), len(dest))
	copy(dest, src)
	return nil
}

func (d *STM32F4) Erase(startAddr, endAddr uint32) error {
	startIdx, endIdx, err := d.layout.SectorIndexRange(startAddr, endAddr)
	if err != nil {
		return ErrBadRange
	}
	if C.stm32_flash_unlock() != 0 {
		return ErrUnlock
	}
	var failed bool
	for i := startIdx; i <= endIdx; i++ {
		if C.stm32_flash_erase_sector(C.int(i)) != 0 {
			failed = true
			break
		}
	}
	if C.stm32_flash_lock() != 0 {
		return ErrLock
	}
	if failed {
		return ErrSectorError
	}
	return nil
}

func (d *STM32F4) Program(src []byte, dstAddr uint32) error {
	if src == nil {
		return ErrNilSource
	}
	end := dstAddr + uint32(len(src))
	inPrimary := dstAddr >= d.layout.PrimaryStart && end <= d.layout.PrimaryEnd
	inBackup := dstAddr >= d.layout.BackupStart && end <= d.layout.BackupEnd
	if !inPrimary && !inBackup {
		return ErrOutOfBounds
	}

	if C.stm32_flash_unlock() != 0 {
		return ErrUnlock
	}
	addr := dstAddr
	var progErr error
	for _, b := range src {
		if C.stm32_flash_program_byte(C.uint32_t(addr), C.uint8_t(b)) != 0 {
			progErr = ErrProgram
			break
		}
		addr++
	}
	if C.stm32_flash_lock() != 0 && progErr == nil {
		return ErrLock
	}
	return progErr
}
