package listener

import (
	"testing"

	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/engine/enginetest"
	"github.com/rrbridge/rrbridge/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T, limit, n int) (*Set, *registry.Registry, *enginetest.Host, *diag.Ring) {
	t.Helper()
	host := enginetest.NewHost()
	ring := diag.NewRing(8)
	reg := registry.New(host, registry.ReuseDeferred, zap.NewNop())
	s := New(host, reg, limit, zap.NewNop(), WithRecorder(ring))
	for i := 0; i < n; i++ {
		_, err := reg.Register(ecs.NewEntityID(uint32(i), 1), registry.KindListener, "", registry.Pose{})
		require.NoError(t, err)
	}
	host.Eng.Reset()
	return s, reg, host, ring
}

func TestSetListeners(t *testing.T) {
	s, _, host, _ := setup(t, 2, 3)

	require.NoError(t, s.SetListeners([]engine.ObjectID{2, 1, 2}))
	assert.Equal(t, []engine.ObjectID{2, 1}, s.Active(), "duplicates collapse, order kept")
	assert.Equal(t, []string{"SetListeners(2,1)"}, host.Eng.Calls)

	err := s.SetListeners([]engine.ObjectID{1, 2, 3})
	assert.ErrorIs(t, err, ErrTooManyListeners)
	assert.Equal(t, []engine.ObjectID{2, 1}, s.Active(), "a rejected set leaves the old one")

	err = s.SetListeners([]engine.ObjectID{9})
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
	assert.Len(t, host.Eng.Calls, 1, "rejected sets never reach the engine")

	require.NoError(t, s.SetListeners(nil))
	assert.Empty(t, s.Active())
}

func TestAddAndDrop(t *testing.T) {
	s, _, host, _ := setup(t, 4, 2)

	require.NoError(t, s.Add(1))
	require.NoError(t, s.Add(1))
	require.NoError(t, s.Add(2))
	assert.Equal(t, []string{"SetListeners(1)", "SetListeners(1,2)"}, host.Eng.Calls)

	s.UpdatePose(2, engine.Transform{Position: engine.Vec3{X: 1}})
	s.UpdatePose(7, engine.Transform{})
	_, ok := s.Pose(7)
	assert.False(t, ok, "poses are only kept for active listeners")

	s.Drop(2)
	assert.Equal(t, []engine.ObjectID{1}, s.Active())
	_, ok = s.Pose(2)
	assert.False(t, ok)
	s.Drop(2)
	assert.Len(t, host.Eng.Calls, 3)
}

func TestUnregisterDropsListenerFirst(t *testing.T) {
	s, reg, host, _ := setup(t, 4, 2)
	require.NoError(t, s.SetListeners([]engine.ObjectID{1, 2}))
	host.Eng.Reset()

	reg.Unregister(ecs.NewEntityID(0, 1))
	assert.Equal(t, []string{"SetListeners(2)", "DestroyObject(1)"}, host.Eng.Calls)
	assert.Equal(t, []engine.ObjectID{2}, s.Active())
}

func TestDropWhenEngineRejects(t *testing.T) {
	s, _, host, ring := setup(t, 4, 2)
	require.NoError(t, s.SetListeners([]engine.ObjectID{1, 2}))
	host.Eng.Fail["SetListeners"] = engine.ErrFail

	s.Drop(1)
	assert.Equal(t, []engine.ObjectID{2}, s.Active())
	require.Len(t, ring.Entries(), 1)
	assert.Equal(t, diag.KindListener, ring.Entries()[0].Kind)
}

func TestNotReady(t *testing.T) {
	s, _, host, _ := setup(t, 4, 1)
	require.NoError(t, s.Add(1))
	host.Err = assert.AnError
	host.Eng.Reset()

	assert.ErrorIs(t, s.SetListeners([]engine.ObjectID{1}), assert.AnError)
	s.Drop(1)
	assert.Empty(t, s.Active())
	assert.Empty(t, host.Eng.Calls)

	s.Reset()
	assert.Equal(t, 4, s.Max())
}
