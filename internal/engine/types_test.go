package engine

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortID(t *testing.T) {
	assert.Equal(t, uint32(2166136261), ShortID(""))
	assert.Equal(t, uint32(84696446), ShortID("a"))
	assert.Equal(t, uint32(3790896173), ShortID("PlayDoppler"))
	assert.Equal(t, ShortID("PlayDoppler"), ShortID("playdoppler"))

	assert.Equal(t, ShortID("Blip"), EventName("Blip").ShortID())
	assert.Equal(t, uint32(42), EventID(42).ShortID())
	assert.True(t, EventRef{}.IsZero())
	assert.Equal(t, "#42", EventID(42).String())
	assert.Equal(t, "Blip", EventName("Blip").String())
}

func TestQuatAxes(t *testing.T) {
	near := func(t *testing.T, want, got Vec3) {
		t.Helper()
		assert.InDelta(t, want.X, got.X, 1e-5)
		assert.InDelta(t, want.Y, got.Y, 1e-5)
		assert.InDelta(t, want.Z, got.Z, 1e-5)
	}

	near(t, Vec3{Z: -1}, IdentityQuat.Forward())
	near(t, Vec3{Y: 1}, IdentityQuat.Up())

	q := QuatFromYaw(math.Pi / 2)
	near(t, Vec3{X: -1}, q.Forward())
	near(t, Vec3{Y: 1}, q.Up())
	assert.InDelta(t, 1, q.Forward().Len(), 1e-6)
}

func TestVec3(t *testing.T) {
	v := Vec3{3, 0, 4}
	assert.Equal(t, float32(5), v.Len())
	assert.Equal(t, Vec3{0.6, 0, 0.8}, v.Normalize())
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
	assert.Equal(t, Vec3{Z: 1}, Vec3{X: 1}.Cross(Vec3{Y: 1}))
}

func TestCallbackFlags(t *testing.T) {
	f := CallbackEndOfEvent | CallbackDuration
	assert.True(t, f.Has(CallbackDuration))
	assert.False(t, CallbackEndOfEvent.Has(CallbackDuration))
	assert.Equal(t, "EndOfEvent|Duration", f.String())
	assert.Equal(t, "none", CallbackFlags(0).String())
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Errorf("SetPosition", ResultIDNotFound, "object %d", 7))
	assert.True(t, errors.Is(err, ErrIDNotFound))
	assert.False(t, errors.Is(err, ErrInvalidID))
	assert.Equal(t, "wrap: engine: SetPosition: IDNotFound (object 7)", err.Error())
	assert.Equal(t, "Result(99)", Result(99).String())
}
