//go:build !windows

package guard

// registerConsoleHandler is a no-op away from Windows; signals cover every
// termination path there.
func registerConsoleHandler(g *Guard) {}
