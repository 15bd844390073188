// Command bootctl is the host-side operator tool for the bootloader's
// serial/TCP update protocol: push a signed image, query the last boot's
// debug record, or exercise the backup-image maintenance sub-commands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	addrFlag := pflag.StringP("addr", "a", "", "device address (host:port)")
	timeoutFlag := pflag.DurationP("timeout", "t", 10*time.Second, "connection timeout")
	pflag.Parse()

	if pflag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := pflag.Arg(0)

	if cmd == "last" {
		rec, err := loadLastPush()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if rec.ImagePath == "" {
			fmt.Println("no recorded push yet")
			return
		}
		fmt.Printf("%s  version=%d  sha256=%s  bytes=%d\n", rec.ImagePath, rec.Version, rec.SHA256Hex, rec.Bytes)
		return
	}

	addr := *addrFlag
	if addr == "" {
		profile, err := loadDeviceProfile(".")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error reading bootctl.jsonc:", err)
			os.Exit(1)
		}
		addr = profile.Addr
	}
	if addr == "" && pflag.NArg() > 1 {
		addr = pflag.Arg(1)
	}
	if addr == "" {
		fmt.Fprintln(os.Stderr, "error: no device address (--addr, bootctl.jsonc, or positional arg)")
		os.Exit(1)
	}

	if err := runCommand(cmd, addr, *timeoutFlag); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCommand(cmd, addr string, timeout time.Duration) error {
	c, err := dial(addr, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	switch cmd {
	case "push":
		path := pflag.Arg(2)
		if path == "" {
			path = pflag.Arg(1)
		}
		if path == "" {
			return fmt.Errorf("usage: bootctl push --addr <host:port> <image.bin>")
		}
		rec, err := pushImage(c, path)
		if err != nil {
			return err
		}
		rec.Addr = addr
		return saveLastPush(rec)
	case "status":
		return queryStatus(c)
	case "validate-backup":
		return validateBackup(c)
	case "erase-backup":
		return eraseBackup(c)
	case "repl":
		r := &repl{c: c}
		return r.Run()
	case "console":
		return rawConsole(c)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	fmt.Println("bootctl - stm32-bootloader host update tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  bootctl --addr <host:port> push <image.bin>")
	fmt.Println("  bootctl --addr <host:port> status")
	fmt.Println("  bootctl --addr <host:port> validate-backup")
	fmt.Println("  bootctl --addr <host:port> erase-backup")
	fmt.Println("  bootctl --addr <host:port> repl")
	fmt.Println("  bootctl --addr <host:port> console             # raw byte passthrough")
	fmt.Println("  bootctl last                          # last push recorded on this host")
	fmt.Println()
	fmt.Println("Address can also come from ./bootctl.jsonc ({\"addr\": \"host:port\"}).")
}
