//go:build tinygo

package main

/*
#include <stdint.h>

// Adapted from original_source's sys_set_msp/sys_prepare_for_application/
// jump_to_application sequence (drivers/sys/sys.c, main_fsm.c): install the
// application's initial stack pointer from its vector table, then branch
// to its reset handler. Neither function returns once the jump executes.

static inline void hw_set_msp(uint32_t vectorTableAddr) {
    uint32_t sp = *(volatile uint32_t *)vectorTableAddr;
    __asm volatile ("MSR msp, %0" : : "r" (sp) : );
}

static inline void hw_jump_to_app(uint32_t vectorTableAddr) {
    uint32_t resetHandler = *(volatile uint32_t *)(vectorTableAddr + 4);
    void (*entry)(void) = (void (*)(void))resetHandler;
    entry();
}

static inline void hw_disable_irq(void) {
    __asm volatile ("CPSID i" : : : "memory");
}
*/
import "C"

// hardwareHandoff is bootfsm.SystemHandoff on the real STM32F401RE target.
type hardwareHandoff struct {
	vectorTableAddr uint32
}

func (h *hardwareHandoff) SetMSP(addr uint32) {
	h.vectorTableAddr = addr
	C.hw_set_msp(C.uint32_t(addr))
}

// PrepareForApplication masks interrupts (none may fire into the
// bootloader's now-stale vector table once MSP has moved) and branches
// into the application. It does not return. It does not deinitialise
// peripherals, relocate the vector table or configure the MPU, and
// interrupts are still masked when the application starts.
func (h *hardwareHandoff) PrepareForApplication() {
	C.hw_disable_irq()
	C.hw_jump_to_app(C.uint32_t(h.vectorTableAddr))
}
