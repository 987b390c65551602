//go:build windows

package guard

import "golang.org/x/sys/windows"

// consoleCallback must stay referenced for the lifetime of the process so
// the callback trampoline is never collected.
var consoleCallback uintptr

// registerConsoleHandler hooks console close, logoff and system shutdown,
// which never arrive as Go signals. Returning TRUE claims the event so the
// system waits for restoration before terminating the process.
func registerConsoleHandler(g *Guard) {
	consoleCallback = windows.NewCallback(func(ctrlType uint32) uintptr {
		g.log.Info("console control event", "type", ctrlType)
		g.Shutdown()
		return 1
	})

	if err := windows.SetConsoleCtrlHandler(consoleCallback, true); err != nil {
		// Best-effort: the signal path still covers Ctrl+C.
		g.log.Warn("console control handler registration failed", "error", err)
	}
}
