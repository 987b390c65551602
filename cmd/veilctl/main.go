// veilctl - control client for the veild daemon
//
//	veilctl list                     List visible top-level windows
//	veilctl select <handle>          Make a window the lock-toggle target
//	veilctl set <handle> <percent>   Set window opacity (0-100)
//	veilctl click <handle> on|off    Enable/disable click-through
//	veilctl lock <handle>            Lock click-through on a window
//	veilctl unlock <handle>          Unlock, falling back to held-key state
//	veilctl untop <handle>           Drop a window out of always-on-top
//	veilctl restore [handle]         Restore one window, or all
//	veilctl record <handle>          Show tracked state of a window
//	veilctl status                   Show daemon status
//	veilctl shutdown                 Restore everything and stop the daemon
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"veil/internal/config"
	"veil/internal/ipc"
)

func main() {
	socketPath := flag.String("socket", "", "daemon socket path (default ~/.veil/veild.sock)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		usage()
		return
	}

	client := dial(*socketPath)
	defer client.Close()

	switch cmd {
	case "list":
		cmdList(client)
	case "select":
		cmdSelect(client, args[1:])
	case "set":
		cmdSet(client, args[1:])
	case "click":
		cmdClick(client, args[1:])
	case "lock":
		cmdLock(client, args[1:], true)
	case "unlock":
		cmdLock(client, args[1:], false)
	case "untop":
		cmdUntop(client, args[1:])
	case "restore":
		cmdRestore(client, args[1:])
	case "record":
		cmdRecord(client, args[1:])
	case "status":
		cmdStatus(client)
	case "ping":
		cmdPing(client)
	case "shutdown":
		cmdShutdown(client)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`veilctl - control the veild window daemon

USAGE:
    veilctl [-socket path] <command> [arguments]

COMMANDS:
    list                     List visible top-level windows
    select <handle>          Make a window the lock-toggle target
    set <handle> <percent>   Set window opacity (0-100, forces topmost)
    click <handle> on|off    Enable or disable click-through
    lock <handle>            Lock click-through independent of the held key
    unlock <handle>          Unlock; state falls back to the held key
    untop <handle>           Drop a window out of the always-on-top band
    restore [handle]         Restore one window, or every tracked window
    record <handle>          Show the tracked state of a window
    status                   Show daemon status and all tracked windows
    ping                     Check that the daemon is alive
    shutdown                 Restore everything and stop the daemon
    help                     Show this help message

Handles are the numeric values printed by 'veilctl list'.`)
}

func dial(socketPath string) *ipc.Client {
	if socketPath == "" {
		socketPath = config.DefaultConfig().IPC.SocketPath
	}
	client, err := ipc.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Is veild running?")
		os.Exit(1)
	}
	return client
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func parseHandle(args []string, usageLine string) uint64 {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usageLine)
		os.Exit(1)
	}
	h, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		// Retry as bare hex; list output is decimal but users paste hex
		// handles from other tools.
		h, err = strconv.ParseUint(args[0], 16, 64)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid handle: %s\n", args[0])
		os.Exit(1)
	}
	return h
}

func cmdList(c *ipc.Client) {
	windows, err := c.ListWindows()
	if err != nil {
		fatal(err)
	}
	if len(windows) == 0 {
		fmt.Println("No visible windows.")
		return
	}
	for i, w := range windows {
		fmt.Printf("%3d  %10d  [%s] %s\n", i+1, w.Handle, w.Class, w.Title)
	}
}

func cmdSelect(c *ipc.Client, args []string) {
	h := parseHandle(args, "Usage: veilctl select <handle>")
	if err := c.Select(h); err != nil {
		fatal(err)
	}
	fmt.Printf("Selected window %d\n", h)
}

func cmdSet(c *ipc.Client, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: veilctl set <handle> <percent>")
		os.Exit(1)
	}
	h := parseHandle(args[:1], "Usage: veilctl set <handle> <percent>")
	percent, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid percent: %s\n", args[1])
		os.Exit(1)
	}
	if err := c.SetOpacity(h, percent); err != nil {
		fatal(err)
	}
	fmt.Printf("Window %d opacity set to %d%%\n", h, percent)
}

func cmdClick(c *ipc.Client, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: veilctl click <handle> on|off")
		os.Exit(1)
	}
	h := parseHandle(args[:1], "Usage: veilctl click <handle> on|off")

	var enable bool
	switch strings.ToLower(args[1]) {
	case "on", "true", "1":
		enable = true
	case "off", "false", "0":
		enable = false
	default:
		fmt.Fprintf(os.Stderr, "Invalid state: %s (want on or off)\n", args[1])
		os.Exit(1)
	}

	if err := c.SetClickThrough(h, enable, false); err != nil {
		fatal(err)
	}
	fmt.Printf("Window %d click-through: %v\n", h, enable)
}

func cmdLock(c *ipc.Client, args []string, lock bool) {
	verb := "unlock"
	if lock {
		verb = "lock"
	}
	h := parseHandle(args, "Usage: veilctl "+verb+" <handle>")

	// Locking always enables passthrough; unlocking leaves the window in
	// the transiently-enabled pool, where the daemon's key poll decides.
	if err := c.SetClickThrough(h, lock, lock); err != nil {
		fatal(err)
	}
	if lock {
		fmt.Printf("Window %d click-through locked\n", h)
	} else {
		fmt.Printf("Window %d unlocked\n", h)
	}
}

func cmdUntop(c *ipc.Client, args []string) {
	h := parseHandle(args, "Usage: veilctl untop <handle>")
	if err := c.RemoveTopmost(h); err != nil {
		fatal(err)
	}
	fmt.Printf("Window %d removed from always-on-top\n", h)
}

func cmdRestore(c *ipc.Client, args []string) {
	if len(args) == 0 {
		if err := c.RestoreAll(); err != nil {
			fatal(err)
		}
		fmt.Println("All tracked windows restored.")
		return
	}
	h := parseHandle(args, "Usage: veilctl restore [handle]")
	if err := c.Restore(h); err != nil {
		fatal(err)
	}
	fmt.Printf("Window %d restored\n", h)
}

func cmdRecord(c *ipc.Client, args []string) {
	h := parseHandle(args, "Usage: veilctl record <handle>")
	rec, err := c.GetRecord(h)
	if err != nil {
		fatal(err)
	}
	if rec == nil {
		fmt.Printf("Window %d is not tracked.\n", h)
		return
	}
	printYAML(rec)
}

func cmdStatus(c *ipc.Client) {
	status, err := c.Status()
	if err != nil {
		fatal(err)
	}
	printYAML(status)
}

func cmdPing(c *ipc.Client) {
	if err := c.Ping(); err != nil {
		fatal(err)
	}
	fmt.Println("veild is alive.")
}

func cmdShutdown(c *ipc.Client) {
	if err := c.Shutdown(); err != nil {
		fatal(err)
	}
	fmt.Println("Shutdown requested; all windows will be restored.")
}

func printYAML(v any) {
	out, err := yaml.Marshal(v)
	if err != nil {
		fatal(err)
	}
	fmt.Print(string(out))
}
