package transform

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/engine/enginetest"
	"github.com/rrbridge/rrbridge/internal/listener"
	"github.com/rrbridge/rrbridge/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func assertVec(t *testing.T, want, got engine.Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-5, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-5, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-5, "z")
}

func TestConvertMirrorsZ(t *testing.T) {
	p := registry.Pose{Position: engine.Vec3{X: 1, Y: 2, Z: 3}, Rotation: engine.IdentityQuat}

	tr := Convert(p, 1)
	assertVec(t, engine.Vec3{X: 1, Y: 2, Z: -3}, tr.Position)
	assertVec(t, engine.Vec3{Z: 1}, tr.Front)
	assertVec(t, engine.Vec3{Y: 1}, tr.Top)

	tr = Convert(p, 2)
	assertVec(t, engine.Vec3{X: 2, Y: 4, Z: -6}, tr.Position)

	p.Rotation = engine.QuatFromYaw(math.Pi / 2)
	tr = Convert(p, 1)
	assertVec(t, engine.Vec3{X: -1}, tr.Front)
	assert.InDelta(t, 0, tr.Front.Dot(tr.Top), 1e-6, "front and top stay orthogonal")
}

type fixture struct {
	host *enginetest.Host
	reg  *registry.Registry
	ls   *listener.Set
	sync *Sync
	ring *diag.Ring
}

func newFixture() *fixture {
	f := &fixture{host: enginetest.NewHost(), ring: diag.NewRing(8)}
	f.reg = registry.New(f.host, registry.ReuseDeferred, zap.NewNop())
	f.ls = listener.New(f.host, f.reg, 4, zap.NewNop())
	f.sync = New(f.host, f.reg, f.ls, zap.NewNop(), WithRecorder(f.ring))
	return f
}

func (f *fixture) register(t *testing.T, i uint32, x float32) engine.ObjectID {
	t.Helper()
	id, err := f.reg.Register(ecs.NewEntityID(i, 1), registry.KindEmitter, "",
		registry.Pose{Position: engine.Vec3{X: x}, Rotation: engine.IdentityQuat})
	require.NoError(t, err)
	return id
}

func TestSyncOnlyDirtyObjects(t *testing.T) {
	f := newFixture()
	f.register(t, 1, 1)
	f.register(t, 2, 2)

	n, err := f.sync.Tick()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.host.Eng.CallsTo("SetPosition"), 2)

	f.host.Eng.Reset()
	n, err = f.sync.Tick()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.host.Eng.Calls, "clean objects cost no engine call")

	f.reg.SetPose(ecs.NewEntityID(2, 1), registry.Pose{Position: engine.Vec3{X: 5}, Rotation: engine.IdentityQuat})
	n, err = f.sync.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	calls := f.host.Eng.CallsTo("SetPosition")
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0], "SetPosition(2,(5.000, 0.000,"), calls[0])
}

func TestSyncFailureKeepsObjectDirty(t *testing.T) {
	f := newFixture()
	id := f.register(t, 1, 1)
	f.host.Eng.Fail["SetPosition"] = engine.ErrInvalidParameter

	n, err := f.sync.Tick()
	require.NoError(t, err, "per-object failures do not fail the pass")
	assert.Zero(t, n)
	require.Len(t, f.ring.Entries(), 1)
	assert.Equal(t, id, f.ring.Entries()[0].Object)

	delete(f.host.Eng.Fail, "SetPosition")
	n, err = f.sync.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSyncNotReady(t *testing.T) {
	f := newFixture()
	f.register(t, 1, 1)
	f.host.Eng.Reset()
	f.host.Err = errors.New("down")

	_, err := f.sync.Tick()
	assert.Error(t, err)
	assert.Empty(t, f.host.Eng.Calls)
}

func TestSyncRecordsListenerPose(t *testing.T) {
	f := newFixture()
	id := f.register(t, 1, 3)
	require.NoError(t, f.ls.Add(id))

	_, err := f.sync.Tick()
	require.NoError(t, err)
	tr, ok := f.ls.Pose(id)
	require.True(t, ok)
	assertVec(t, engine.Vec3{X: 3}, tr.Position)
}
