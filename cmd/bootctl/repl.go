package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/gpappasv/stm32-bootloader/internal/update"
)

// repl is an interactive session against one connected device: a
// readline-style shell over the same push/status/validate/erase
// operations the single-shot subcommands expose, grounded on the
// sloty tool's liner-driven command loop.
type repl struct {
	c     *conn
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bootctl_history")
}

func (r *repl) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("bootctl interactive session. Type 'help' for commands, 'exit' to quit.")

	for {
		line, err := r.liner.Prompt("bootctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		if !r.dispatch(line) {
			break
		}
	}

	if f, err := os.Create(historyFile()); err == nil {
		r.liner.WriteHistory(f)
		f.Close()
	}
	return nil
}

// dispatch runs one command line and returns false when the session
// should end.
func (r *repl) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "exit", "quit", "q":
		return false
	case "help", "?":
		r.printHelp()
	case "status":
		if err := queryStatus(r.c); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	case "push":
		if len(args) != 1 {
			fmt.Println("usage: push <image.bin>")
			break
		}
		rec, err := pushImage(r.c, args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			break
		}
		rec.Addr = ""
		if err := saveLastPush(rec); err != nil {
			fmt.Fprintln(os.Stderr, "warning: could not cache push record:", err)
		}
		fmt.Println("push complete, version", rec.Version)
	case "validate-backup":
		if err := validateBackup(r.c); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	case "erase-backup":
		if err := eraseBackup(r.c); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	case "cancel":
		if _, err := r.c.roundTrip(update.FWUGCancel, nil); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
	return true
}

func (r *repl) printHelp() {
	fmt.Println("commands:")
	fmt.Println("  status                 query REQ_DATA{DEBUG_INF}")
	fmt.Println("  push <image.bin>       drive FWUG_START/DATA*")
	fmt.Println("  validate-backup        CMD{VALIDATE_BACKUP_IMG}")
	fmt.Println("  erase-backup           CMD{ERASE_BACKUP_IMG}")
	fmt.Println("  exit                   end the session")
}
