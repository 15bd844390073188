//go:build tinygo

// Command firmware is the STM32F401RE target image: it wires the flash,
// slot, integrity, update, and boot-decision packages together with the
// ambient logging and embedded-key packages into the bootable image.
package main

import (
	"log/slog"
	"machine"
	"time"

	"github.com/gpappasv/stm32-bootloader/internal/boardcfg"
	"github.com/gpappasv/stm32-bootloader/internal/bootfsm"
	"github.com/gpappasv/stm32-bootloader/internal/bootlog"
	"github.com/gpappasv/stm32-bootloader/internal/flash"
	"github.com/gpappasv/stm32-bootloader/internal/integrity"
	"github.com/gpappasv/stm32-bootloader/internal/pubkey"
	"github.com/gpappasv/stm32-bootloader/internal/slot"
	"github.com/gpappasv/stm32-bootloader/internal/update"
	"github.com/gpappasv/stm32-bootloader/version"
)

// uart is USART2 at 115200 8N1, the com_protocol channel original_source's
// uart_driver.c configures.
var uart = machine.UART2

func main() {
	time.Sleep(100 * time.Millisecond) // let the host terminal attach

	uart.Configure(machine.UARTConfig{BaudRate: 115200})
	logger := slog.New(bootlog.NewHandler(uart, &slog.HandlerOptions{Level: slog.LevelInfo}))

	layout := boardcfg.DefaultSTM32F401RELayout()
	if err := layout.Validate(); err != nil {
		logger.Error("boot:bad-layout", slog.String("err", err.Error()))
		for {
			time.Sleep(time.Second)
		}
	}

	dev := flash.NewSTM32F4(layout)
	slots := slot.NewManager(dev, layout)
	input := newButtonInput()

	machineState := &bootfsm.Machine{
		Slots:    slots,
		Hasher:   integrity.StdHasher{},
		Verifier: integrity.ECDSAP256Verifier{},
		PubKey:   pubkey.Embedded(),
		Input:    input,
		Handoff:  &hardwareHandoff{},
		Guard:    hardwareGuard{},
	}

	ctx := &bootfsm.Context{}
	logger.Info("boot:start", slog.String("version", version.Version), slog.String("sha", version.GitSHA))
	state, err := machineState.Run(ctx)
	if err != nil {
		logger.Error("boot:fatal", slog.String("err", err.Error()))
	}

	// Run only returns for BOOTLOOP (or a fatal, unlisted transition):
	// BOOT_APP's handoff branches away and never comes back. From here the
	// board stays in recovery mode, servicing the update protocol over
	// USART2 until a new image is pushed and the watchdog (external, via
	// the Nucleo's own reset) cycles the board back through boot.
	logger.Info("boot:recovery-mode", slog.String("state", state.String()))
	runRecoveryMode(logger, slots, ctx)
}

// runRecoveryMode services FWUG_START/DATA/CANCEL, REQ_DATA{DEBUG_INF},
// and the CMD sub-commands over USART2 for as long as the board stays in
// BOOTLOOP, one byte at a time off the UART's receive buffer.
func runRecoveryMode(logger *slog.Logger, slots *slot.Manager, ctx *bootfsm.Context) {
	debug := update.DebugInfo{
		LastBootState:  uint8(ctx.State),
		NewerOnBackup:  ctx.NewerOnBackup,
		RecoverPrimary: ctx.RecoverPrimary,
	}
	engine := update.NewEngine(slots, integrity.StdHasher{}, integrity.ECDSAP256Verifier{}, pubkey.Embedded(), debug)
	transport := update.NewTransport(engine, uart, update.DefaultReceiveGap)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		for uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			transport.Feed([]byte{b}, time.Now())
			transport.TryDrainFrame()
			for transport.Pump() {
				logger.Info("update:frame-handled")
			}
		}
		select {
		case <-ticker.C:
			transport.CheckGap(time.Now())
		default:
		}
	}
}
