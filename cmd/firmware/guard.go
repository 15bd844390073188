//go:build tinygo

package main

/*
static inline void guard_disable_irq(void) {
    __asm volatile ("CPSID i" : : : "memory");
}
static inline void guard_enable_irq(void) {
    __asm volatile ("CPSIE i" : : : "memory");
}
*/
import "C"

// hardwareGuard is slot.InterruptGuard: the critical-section mask around
// PromoteBackupToPrimary's erase-then-program sequence, adapted from
// original_source's flash_apis.c __disable_irq/__enable_irq bracketing.
type hardwareGuard struct{}

func (hardwareGuard) Disable() { C.guard_disable_irq() }
func (hardwareGuard) Enable()  { C.guard_enable_irq() }
