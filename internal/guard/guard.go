// Package guard guarantees that every tracked window is restored before the
// process disappears, on every exit path: normal shutdown, interrupt,
// console close, logoff and system shutdown.
//
// All termination channels funnel into one idempotent Shutdown entry point.
// A cleanup handler that crashes on the way out would leave windows stuck
// transparent and click-through, which is the worst failure mode this
// program has, so Shutdown swallows everything after a best-effort sweep.
package guard

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"veil/internal/engine"
	"veil/internal/logging"
)

// Guard drains the engine's state store on termination.
type Guard struct {
	eng *engine.Engine
	log *logging.Logger

	shuttingDown atomic.Bool
	done         chan struct{}
	sig          chan os.Signal

	// onShutdown, when set, runs after restoration so the daemon loop can
	// be told to exit.
	onShutdown func()
}

// New creates a guard over the engine. onShutdown may be nil.
func New(eng *engine.Engine, log *logging.Logger, onShutdown func()) *Guard {
	if log == nil {
		log = logging.Default()
	}
	return &Guard{
		eng:        eng,
		log:        log.WithComponent("guard"),
		done:       make(chan struct{}),
		onShutdown: onShutdown,
	}
}

// Arm registers the guard with every termination channel the platform
// offers: interrupt/termination signals everywhere, plus the console
// control handler on Windows (console close, logoff, shutdown).
func (g *Guard) Arm() {
	g.sig = make(chan os.Signal, 1)
	signal.Notify(g.sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	go func() {
		s, ok := <-g.sig
		if !ok {
			return
		}
		g.log.Info("termination signal", "signal", s.String())
		g.Shutdown()
	}()

	registerConsoleHandler(g)
}

// Shutdown restores all tracked windows exactly once. Safe to call from any
// goroutine, repeatedly, and concurrently with engine operations; later
// calls return immediately. Never panics.
func (g *Guard) Shutdown() {
	if !g.shuttingDown.CompareAndSwap(false, true) {
		return
	}

	defer close(g.done)
	defer func() {
		if r := recover(); r != nil {
			// Swallow: a crashing cleanup handler is worse than an
			// incomplete one.
			g.log.Error("panic during restoration", "panic", r)
		}
		if g.onShutdown != nil {
			g.onShutdown()
		}
	}()

	g.log.Info("restoring all tracked windows", "tracked", g.eng.Tracked())
	g.eng.RestoreAll()
	signal.Stop(g.sig)
}

// Done is closed once shutdown restoration has completed.
func (g *Guard) Done() <-chan struct{} {
	return g.done
}

// ShuttingDown reports whether shutdown has been triggered.
func (g *Guard) ShuttingDown() bool {
	return g.shuttingDown.Load()
}
