package registry

import (
	"errors"
	"slices"
	"testing"

	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

var errDown = errors.New("engine down")

type host struct {
	err error
	eng *enginetest.Fake
}

func (h *host) Ready() error          { return h.err }
func (h *host) Engine() engine.Engine { return h.eng }

func newRegistry(policy ReusePolicy, opts ...Option) (*Registry, *host) {
	h := &host{eng: enginetest.New()}
	return New(h, policy, zap.NewNop(), opts...), h
}

func ent(i uint32) ecs.EntityID { return ecs.NewEntityID(i, 1) }

func TestAllocatorPolicies(t *testing.T) {
	a := NewAllocator(ReuseDeferred)
	assert.Equal(t, engine.ObjectID(1), a.Acquire())
	a.Release(1)
	assert.Equal(t, engine.ObjectID(2), a.Acquire(), "deferred: not within the same tick")
	a.EndTick()
	assert.Equal(t, engine.ObjectID(1), a.Acquire())

	a = NewAllocator(ReuseImmediate)
	a.Acquire()
	a.Acquire()
	a.Release(1)
	a.Release(2)
	assert.Equal(t, engine.ObjectID(2), a.Acquire(), "released ids come back LIFO")
	assert.Equal(t, engine.ObjectID(1), a.Acquire())

	a = NewAllocator(ReuseNever)
	a.Acquire()
	a.Release(1)
	a.EndTick()
	assert.Equal(t, engine.ObjectID(2), a.Acquire())

	a.Reset()
	assert.Equal(t, engine.ObjectID(1), a.Acquire())
}

func TestParseReusePolicy(t *testing.T) {
	for in, want := range map[string]ReusePolicy{
		"": ReuseDeferred, "deferred": ReuseDeferred, " Immediate ": ReuseImmediate, "never": ReuseNever,
	} {
		got, err := ParseReusePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseReusePolicy("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "never", ReuseNever.String())
}

func TestRegister(t *testing.T) {
	r, h := newRegistry(ReuseDeferred)

	id, err := r.Register(ent(3), KindEmitter, "", Pose{})
	require.NoError(t, err)
	assert.Equal(t, engine.ObjectID(1), id)
	assert.Equal(t, "RrEmitter_3", h.eng.Objects[id])

	again, err := r.Register(ent(3), KindEmitter, "other", Pose{})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Len(t, h.eng.CallsTo("CreateObject"), 1)

	id2, err := r.Register(ent(4), KindListener, " Ｄｒｏｎｅ ", Pose{})
	require.NoError(t, err)
	assert.Equal(t, "Drone", h.eng.Objects[id2])

	obj, ok := r.Get(id2)
	require.True(t, ok)
	assert.Equal(t, KindListener, obj.Kind)
	assert.True(t, obj.Dirty, "new objects need their first position")
	assert.Equal(t, []engine.ObjectID{1, 2}, r.IDs())
}

func TestRegisterNotReady(t *testing.T) {
	r, h := newRegistry(ReuseDeferred)
	h.err = errDown

	_, err := r.Register(ent(1), KindEmitter, "", Pose{})
	assert.ErrorIs(t, err, errDown)

	_, err = r.Reconcile([]Candidate{{Entity: ent(1)}})
	assert.ErrorIs(t, err, errDown)
	assert.Empty(t, h.eng.Calls)
	assert.Zero(t, r.Len())
}

func TestRegisterFailureReleasesID(t *testing.T) {
	ring := diag.NewRing(4)
	r, h := newRegistry(ReuseImmediate, WithRecorder(ring))
	h.eng.Fail["CreateObject"] = engine.ErrInsufficientMemory

	_, err := r.Register(ent(1), KindEmitter, "", Pose{})
	assert.ErrorIs(t, err, engine.ErrInsufficientMemory)
	assert.False(t, r.Contains(1))
	require.Len(t, ring.Entries(), 1)
	assert.Equal(t, "CreateObject", ring.Entries()[0].Op)

	delete(h.eng.Fail, "CreateObject")
	id, err := r.Register(ent(1), KindEmitter, "", Pose{})
	require.NoError(t, err)
	assert.Equal(t, engine.ObjectID(1), id)
}

func TestUnregister(t *testing.T) {
	r, h := newRegistry(ReuseDeferred)
	id, err := r.Register(ent(1), KindEmitter, "", Pose{})
	require.NoError(t, err)

	var hookSawObject bool
	r.OnUnregister(func(obj RegisteredObject) {
		_, hookSawObject = h.eng.Objects[obj.ID]
	})

	got, ok := r.Unregister(ent(1))
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.True(t, hookSawObject, "hooks run before the engine destroy call")
	assert.Equal(t, []string{"DestroyObject(1)"}, h.eng.CallsTo("DestroyObject"))
	_, ok = r.Lookup(ent(1))
	assert.False(t, ok)

	_, ok = r.Unregister(ent(1))
	assert.False(t, ok)
}

func TestUnregisterNotReady(t *testing.T) {
	r, h := newRegistry(ReuseDeferred)
	id, err := r.Register(ent(1), KindEmitter, "", Pose{})
	require.NoError(t, err)
	var hooked bool
	r.OnUnregister(func(RegisteredObject) { hooked = true })
	h.eng.Reset()
	h.err = errDown

	_, ok := r.Unregister(ent(1))
	assert.False(t, ok)
	assert.False(t, hooked)
	assert.Empty(t, h.eng.Calls)
	assert.True(t, r.Contains(id), "the binding survives until the engine is back")

	h.err = nil
	got, ok := r.Unregister(ent(1))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestReconcileReregistersOnKindChange(t *testing.T) {
	r, h := newRegistry(ReuseDeferred)
	_, err := r.Reconcile([]Candidate{{Entity: ent(1), Kind: KindEmitter}})
	require.NoError(t, err)
	h.eng.Reset()

	diff, err := r.Reconcile([]Candidate{{Entity: ent(1), Kind: KindListener}})
	require.NoError(t, err)
	assert.Equal(t, []Binding{{Entity: ent(1), ID: 1, Kind: KindEmitter}}, diff.Removed)
	assert.Equal(t, []Binding{{Entity: ent(1), ID: 2, Kind: KindListener}}, diff.Added)
	assert.Equal(t, []string{"DestroyObject(1)", "CreateObject(2,RrListener_1)"}, h.eng.Calls)

	obj, ok := r.Get(2)
	require.True(t, ok)
	assert.Equal(t, KindListener, obj.Kind)
	assert.Equal(t, 1, r.Len())
}

func TestTransientIDsShareTheAllocator(t *testing.T) {
	r, _ := newRegistry(ReuseDeferred)
	_, err := r.Register(ent(1), KindEmitter, "", Pose{})
	require.NoError(t, err)

	tmp := r.AcquireTransient()
	assert.Equal(t, engine.ObjectID(2), tmp)
	assert.False(t, r.Contains(tmp))
	r.ReleaseTransient(tmp)

	id, err := r.Register(ent(2), KindEmitter, "", Pose{})
	require.NoError(t, err)
	assert.Equal(t, engine.ObjectID(3), id, "a released transient id is quarantined until the tick ends")

	r.EndTick()
	id, err = r.Register(ent(3), KindEmitter, "", Pose{})
	require.NoError(t, err)
	assert.Equal(t, tmp, id)
}

func TestReconcileRegistersListenersFirst(t *testing.T) {
	r, _ := newRegistry(ReuseDeferred)

	diff, err := r.Reconcile([]Candidate{
		{Entity: ent(1), Kind: KindEmitter},
		{Entity: ent(2), Kind: KindListener},
	})
	require.NoError(t, err)
	assert.Equal(t, []Binding{
		{Entity: ent(2), ID: 1, Kind: KindListener},
		{Entity: ent(1), ID: 2, Kind: KindEmitter},
	}, diff.Added)
	assert.Empty(t, diff.Removed)

	diff, err = r.Reconcile([]Candidate{{Entity: ent(1), Kind: KindEmitter}})
	require.NoError(t, err)
	assert.Empty(t, diff.Added)
	assert.Equal(t, []Binding{{Entity: ent(2), ID: 1, Kind: KindListener}}, diff.Removed)
}

func TestReconcileRetriesFailedRegistration(t *testing.T) {
	r, h := newRegistry(ReuseDeferred)
	cands := []Candidate{{Entity: ent(1)}}

	h.eng.Fail["CreateObject"] = engine.ErrFail
	_, err := r.Reconcile(cands)
	assert.ErrorIs(t, err, engine.ErrFail)
	assert.Zero(t, r.Len())

	delete(h.eng.Fail, "CreateObject")
	diff, err := r.Reconcile(cands)
	require.NoError(t, err)
	assert.Len(t, diff.Added, 1)
}

func TestPoseDirtyTracking(t *testing.T) {
	r, _ := newRegistry(ReuseDeferred)
	_, err := r.Register(ent(1), KindEmitter, "", Pose{})
	require.NoError(t, err)

	visits := 0
	r.EachDirty(func(*RegisteredObject) bool { visits++; return true })
	r.EachDirty(func(*RegisteredObject) bool { visits++; return true })
	assert.Equal(t, 1, visits)

	assert.False(t, r.SetPose(ent(1), Pose{}), "same pose stays clean")
	assert.True(t, r.SetPose(ent(1), Pose{Position: engine.Vec3{X: 1}}))
	assert.False(t, r.SetPose(ent(9), Pose{}))

	// A failed sync keeps the flag.
	r.EachDirty(func(*RegisteredObject) bool { return false })
	r.EachDirty(func(*RegisteredObject) bool { visits++; return true })
	assert.Equal(t, 2, visits)
}

func TestClear(t *testing.T) {
	r, h := newRegistry(ReuseNever)
	_, _ = r.Register(ent(1), KindEmitter, "", Pose{})
	_, _ = r.Register(ent(2), KindEmitter, "", Pose{})
	h.eng.Reset()

	r.Clear()
	assert.Zero(t, r.Len())
	assert.Empty(t, h.eng.Calls, "clear never calls the engine")

	clear(h.eng.Objects)
	id, err := r.Register(ent(3), KindEmitter, "", Pose{})
	require.NoError(t, err)
	assert.Equal(t, engine.ObjectID(1), id, "allocation restarts after the engine dropped everything")
}

// Spawn E, move it, despawn it, spawn F: under deferred reuse F gets a new
// id within the same tick, under immediate reuse it gets E's.
func TestSpawnMoveDespawnRespawn(t *testing.T) {
	for _, tc := range []struct {
		policy ReusePolicy
		wantF  engine.ObjectID
	}{
		{ReuseDeferred, 2},
		{ReuseImmediate, 1},
		{ReuseNever, 2},
	} {
		t.Run(tc.policy.String(), func(t *testing.T) {
			r, h := newRegistry(tc.policy)
			e, f := ent(1), ent(2)

			diff, err := r.Reconcile([]Candidate{{Entity: e}})
			require.NoError(t, err)
			require.Len(t, diff.Added, 1)
			assert.Equal(t, engine.ObjectID(1), diff.Added[0].ID)
			r.EachDirty(func(*RegisteredObject) bool { return true })

			require.True(t, r.SetPose(e, Pose{Position: engine.Vec3{X: 2}}))
			var dirty []engine.ObjectID
			r.EachDirty(func(o *RegisteredObject) bool { dirty = append(dirty, o.ID); return true })
			assert.Equal(t, []engine.ObjectID{1}, dirty)

			_, err = r.Reconcile(nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"DestroyObject(1)"}, h.eng.CallsTo("DestroyObject"))

			diff, err = r.Reconcile([]Candidate{{Entity: f}})
			require.NoError(t, err)
			require.Len(t, diff.Added, 1)
			assert.Equal(t, tc.wantF, diff.Added[0].ID)
		})
	}
}

// The registered set always equals the candidate set, ids are never shared,
// and the engine holds exactly the registered objects.
func TestPropertyReconcileMatchesCandidates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		policy := rapid.SampledFrom([]ReusePolicy{ReuseDeferred, ReuseImmediate, ReuseNever}).Draw(t, "policy")
		r, h := newRegistry(policy)

		passes := rapid.IntRange(1, 20).Draw(t, "passes")
		for p := 0; p < passes; p++ {
			members := rapid.SliceOfDistinct(rapid.Uint32Range(0, 15), func(v uint32) uint32 { return v }).Draw(t, "members")
			cands := make([]Candidate, len(members))
			for i, m := range members {
				kind := KindEmitter
				if m%4 == 0 {
					kind = KindListener
				}
				cands[i] = Candidate{Entity: ent(m), Kind: kind}
			}

			diff, err := r.Reconcile(cands)
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			freed := map[engine.ObjectID]bool{}
			for _, b := range diff.Removed {
				freed[b.ID] = true
			}
			for _, b := range diff.Added {
				if freed[b.ID] {
					t.Fatalf("id %d freed and reused in the same pass", b.ID)
				}
			}

			if r.Len() != len(members) {
				t.Fatalf("registered %d, want %d", r.Len(), len(members))
			}
			seen := map[engine.ObjectID]ecs.EntityID{}
			for _, m := range members {
				id, ok := r.Lookup(ent(m))
				if !ok {
					t.Fatalf("entity %d not registered", m)
				}
				if other, dup := seen[id]; dup {
					t.Fatalf("id %d bound to %s and %s", id, other, ent(m))
				}
				seen[id] = ent(m)
			}

			ids := r.IDs()
			slices.Sort(ids)
			if !slices.Equal(ids, h.eng.ObjectIDs()) {
				t.Fatalf("engine objects %v, registry %v", h.eng.ObjectIDs(), ids)
			}

			if rapid.Bool().Draw(t, "endTick") {
				r.EndTick()
			}
		}
	})
}

// Between two EndTicks a released id is never handed out again under the
// deferred policy, and never at all under the never policy.
func TestPropertyNoReuseWithinTick(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		policy := rapid.SampledFrom([]ReusePolicy{ReuseDeferred, ReuseNever}).Draw(t, "policy")
		r, _ := newRegistry(policy)

		var live []ecs.EntityID
		releasedThisTick := map[engine.ObjectID]bool{}
		everUsed := map[engine.ObjectID]bool{}
		next := uint32(0)

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for s := 0; s < steps; s++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				e := ent(next)
				next++
				id, err := r.Register(e, KindEmitter, "", Pose{})
				if err != nil {
					t.Fatalf("register: %v", err)
				}
				if releasedThisTick[id] {
					t.Fatalf("id %d reused within the tick it was released", id)
				}
				if policy == ReuseNever && everUsed[id] {
					t.Fatalf("id %d reused under never policy", id)
				}
				everUsed[id] = true
				live = append(live, e)
			case 1:
				if len(live) == 0 {
					continue
				}
				i := rapid.IntRange(0, len(live)-1).Draw(t, "victim")
				id, _ := r.Unregister(live[i])
				releasedThisTick[id] = true
				live = slices.Delete(live, i, i+1)
			case 2:
				r.EndTick()
				clear(releasedThisTick)
			}
		}
	})
}
