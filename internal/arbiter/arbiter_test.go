package arbiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veil/internal/engine"
	"veil/internal/winapi"
)

func newTestArbiter(t *testing.T) (*Arbiter, *engine.Engine, *winapi.Fake) {
	t.Helper()
	fake := winapi.NewFake()
	eng := engine.New(fake, nil)
	a := New(fake, eng, Config{}, nil)
	return a, eng, fake
}

func transparent(t *testing.T, fake *winapi.Fake, h winapi.Handle) bool {
	t.Helper()
	w := fake.Window(h)
	require.NotNil(t, w)
	return w.Style&winapi.StyleTransparent != 0
}

func TestModifierEdgeEnablesAndDisables(t *testing.T) {
	a, eng, fake := newTestArbiter(t)
	fake.AddWindow(1, "A", "C", 0)
	fake.AddWindow(2, "B", "C", 0)
	require.NoError(t, eng.SetOpacity(1, 50))
	require.NoError(t, eng.SetOpacity(2, 50))

	fake.SetKey(winapi.VKLControl, true)
	a.poll()
	assert.True(t, transparent(t, fake, 1))
	assert.True(t, transparent(t, fake, 2))
	assert.True(t, a.Held())

	fake.SetKey(winapi.VKLControl, false)
	a.poll()
	assert.False(t, transparent(t, fake, 1))
	assert.False(t, transparent(t, fake, 2))
	assert.False(t, a.Held())
}

func TestNoActionWithoutEdge(t *testing.T) {
	a, eng, fake := newTestArbiter(t)
	fake.AddWindow(1, "A", "C", 0)
	require.NoError(t, eng.SetOpacity(1, 50))

	fake.SetKey(winapi.VKControl, true)
	a.poll()
	calls := len(fake.AlphaCalls)

	// Steady held state: no further style or alpha churn.
	a.poll()
	a.poll()
	assert.Equal(t, calls, len(fake.AlphaCalls))
}

func TestLockedWindowIgnoresModifier(t *testing.T) {
	a, eng, fake := newTestArbiter(t)
	fake.AddWindow(1, "A", "C", 0)
	require.NoError(t, eng.SetOpacity(1, 50))
	require.NoError(t, eng.SetClickThrough(1, true, true))

	// Releasing the modifier must not turn off a locked window.
	fake.SetKey(winapi.VKControl, true)
	a.poll()
	fake.SetKey(winapi.VKControl, false)
	a.poll()

	assert.True(t, transparent(t, fake, 1))
	v, _ := eng.Record(1)
	assert.True(t, v.Locked)
}

func TestToggleLocksSelected(t *testing.T) {
	a, eng, fake := newTestArbiter(t)
	fake.AddWindow(1, "A", "C", 0)
	require.NoError(t, eng.SetOpacity(1, 50))

	fake.SetKey(winapi.VKOEM3, true)
	a.poll()

	assert.True(t, transparent(t, fake, 1))
	v, _ := eng.Record(1)
	assert.True(t, v.Locked)

	// Holding the toggle key down is not a second edge.
	a.poll()
	v, _ = eng.Record(1)
	assert.True(t, v.Locked)
}

func TestUnlockFallsBackToHeldState(t *testing.T) {
	a, eng, fake := newTestArbiter(t)
	fake.AddWindow(1, "A", "C", 0)
	require.NoError(t, eng.SetOpacity(1, 50))

	// Lock on.
	fake.SetKey(winapi.VKOEM3, true)
	a.poll()
	fake.SetKey(winapi.VKOEM3, false)
	a.poll()

	// Hold the modifier, then unlock: click-through must stay enabled.
	fake.SetKey(winapi.VKControl, true)
	a.poll()
	fake.SetKey(winapi.VKOEM3, true)
	a.poll()

	v, _ := eng.Record(1)
	assert.False(t, v.Locked)
	assert.True(t, transparent(t, fake, 1), "unlock while held keeps passthrough on")

	// Release the modifier: now transient passthrough turns off.
	fake.SetKey(winapi.VKControl, false)
	a.poll()
	assert.False(t, transparent(t, fake, 1))
}

func TestUnlockWhileNotHeldDisables(t *testing.T) {
	a, eng, fake := newTestArbiter(t)
	fake.AddWindow(1, "A", "C", 0)
	require.NoError(t, eng.SetOpacity(1, 50))

	fake.SetKey(winapi.VKOEM3, true)
	a.poll()
	fake.SetKey(winapi.VKOEM3, false)
	a.poll()

	fake.SetKey(winapi.VKOEM3, true)
	a.poll()

	v, _ := eng.Record(1)
	assert.False(t, v.Locked)
	assert.False(t, transparent(t, fake, 1))
}

func TestToggleWithoutSelection(t *testing.T) {
	a, _, fake := newTestArbiter(t)
	fake.SetKey(winapi.VKOEM3, true)
	a.poll() // must not panic or create records
}

func TestFullScenario(t *testing.T) {
	// End-to-end walk: opacity, lock, modifier release, unlock, restore.
	a, eng, fake := newTestArbiter(t)
	fake.AddWindow(7, "W", "C", 0x200)

	require.NoError(t, eng.SetOpacity(7, 50))
	v, _ := eng.Record(7)
	assert.Equal(t, byte(127), v.Alpha)

	require.NoError(t, eng.SetClickThrough(7, true, true))
	last := fake.AlphaCalls[len(fake.AlphaCalls)-1]
	assert.Equal(t, byte(127), last.Alpha, "alpha reasserted after style change")

	// Modifier true→false leaves the locked window untouched.
	fake.SetKey(winapi.VKControl, true)
	a.poll()
	fake.SetKey(winapi.VKControl, false)
	a.poll()
	assert.True(t, transparent(t, fake, 7))

	// Unlock with the modifier not held: transparent bit cleared.
	fake.SetKey(winapi.VKOEM3, true)
	a.poll()
	v, _ = eng.Record(7)
	assert.False(t, v.Locked)
	assert.False(t, transparent(t, fake, 7))

	eng.Restore(7)
	assert.Equal(t, uint32(0x200), fake.Window(7).Style)
	assert.Equal(t, 0, eng.Tracked())
}

func TestStartStop(t *testing.T) {
	a, eng, fake := newTestArbiter(t)
	fake.AddWindow(1, "A", "C", 0)
	require.NoError(t, eng.SetOpacity(1, 50))

	a.Reconfigure(Config{Interval: time.Millisecond})
	a.Start(context.Background())
	defer a.Stop()

	fake.SetKey(winapi.VKControl, true)
	require.Eventually(t, func() bool {
		return transparent(t, fake, 1)
	}, time.Second, 2*time.Millisecond)

	a.Stop()
	a.Stop() // idempotent
}
