package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// rawConsole puts stdin into raw mode and pipes bytes straight through to
// the device connection and back, for watching the bootloader's bootlog
// text output live (it writes plain text to the same UART the update
// protocol rides on) — the same raw-mode terminal handling a password
// prompt uses, generalized from "read one line" to "pass every byte
// through".
func rawConsole(c *conn) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("bootctl: console requires an interactive terminal")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	fmt.Fprintln(os.Stderr, "-- raw console, press Ctrl-] to exit --\r")

	done := make(chan struct{})
	go func() {
		io.Copy(os.Stdout, c.nc)
		close(done)
	}()

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			break
		}
		if buf[0] == 0x1d { // Ctrl-]
			break
		}
		if _, err := c.nc.Write(buf[:n]); err != nil {
			break
		}
	}
	return nil
}
