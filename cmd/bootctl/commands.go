package main

import (
	"encoding/binary"
	"fmt"

	"github.com/gpappasv/stm32-bootloader/internal/update"
)

// queryStatus sends REQ_DATA{DEBUG_INF} and renders the returned record.
func queryStatus(c *conn) error {
	f, err := c.roundTrip(update.ReqData, []byte{update.DataTypeDebugInfo})
	if err != nil {
		return fmt.Errorf("REQ_DATA: %w", err)
	}
	if f.Type != update.Data || len(f.Body) != 7 {
		return fmt.Errorf("unexpected debug-info response (type %d, %d bytes)", f.Type, len(f.Body))
	}

	packets := binary.LittleEndian.Uint32(f.Body[0:4])
	lastState := f.Body[4]
	newerOnBackup := f.Body[5] != 0
	recoverPrimary := f.Body[6] != 0

	fmt.Printf("packets received (last session): %d\n", packets)
	fmt.Printf("last boot state:                 %d\n", lastState)
	fmt.Printf("newer-on-backup latch:           %v\n", newerOnBackup)
	fmt.Printf("recover-primary latch:           %v\n", recoverPrimary)
	return nil
}

// validateBackup sends CMD{VALIDATE_BACKUP_IMG} and reports the OP_RESULT.
func validateBackup(c *conn) error {
	f, err := c.roundTrip(update.Cmd, []byte{update.CmdValidateBackupImg})
	if err != nil {
		return fmt.Errorf("CMD VALIDATE_BACKUP_IMG: %w", err)
	}
	return reportOpResult(f)
}

// eraseBackup sends CMD{ERASE_BACKUP_IMG} and reports the OP_RESULT.
func eraseBackup(c *conn) error {
	f, err := c.roundTrip(update.Cmd, []byte{update.CmdEraseBackupImg})
	if err != nil {
		return fmt.Errorf("CMD ERASE_BACKUP_IMG: %w", err)
	}
	return reportOpResult(f)
}

func reportOpResult(f update.Frame) error {
	if f.Type != update.OpResult || len(f.Body) < 1 {
		return fmt.Errorf("unexpected response frame type %d", f.Type)
	}
	switch f.Body[0] {
	case update.ResultOK:
		fmt.Println("OK")
		return nil
	case update.ResultCRCError:
		return fmt.Errorf("device reported CRC error")
	case update.ResultAuthError:
		return fmt.Errorf("device reported authentication error")
	case update.ResultGenericError:
		return fmt.Errorf("device reported a generic error")
	default:
		return fmt.Errorf("device returned unknown result 0x%02x", f.Body[0])
	}
}
