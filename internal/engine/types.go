package engine

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"
)

// ObjectID identifies one game object inside the engine. Zero is invalid and
// doubles as "all objects" for StopAll.
type ObjectID uint64

const InvalidObjectID ObjectID = 0

// PlayingID identifies one playing instance of a posted event.
type PlayingID uint32

const InvalidPlayingID PlayingID = 0

// BankHandle identifies a loaded soundbank.
type BankHandle uint32

type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Add(o Vec3) Vec3          { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3          { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float32) Vec3     { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float32       { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float32             { return float32(math.Sqrt(float64(v.Dot(v)))) }
func (v Vec3) String() string           { return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z) }
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{v.Y*o.Z - v.Z*o.Y, v.Z*o.X - v.X*o.Z, v.X*o.Y - v.Y*o.X}
}

// Normalize returns v scaled to unit length; the zero vector is returned as is.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Quat is a unit rotation quaternion.
type Quat struct {
	X, Y, Z, W float32
}

var IdentityQuat = Quat{W: 1}

// QuatFromYaw rotates by angle radians around +Y.
func QuatFromYaw(angle float32) Quat {
	s, c := math.Sincos(float64(angle) / 2)
	return Quat{Y: float32(s), W: float32(c)}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Forward is the simulation's forward axis (-Z) rotated by q.
func (q Quat) Forward() Vec3 { return q.Rotate(Vec3{Z: -1}) }

// Up is +Y rotated by q.
func (q Quat) Up() Vec3 { return q.Rotate(Vec3{Y: 1}) }

// Transform is a pose in engine space: left-handed, Y up.
type Transform struct {
	Position Vec3
	Front    Vec3
	Top      Vec3
}

// EventRef names an event either by name or by numeric short id.
type EventRef struct {
	Name string
	ID   uint32
}

func EventName(name string) EventRef { return EventRef{Name: name} }
func EventID(id uint32) EventRef     { return EventRef{ID: id} }

// ShortID is the 32-bit id the engine derives from an event name: FNV-1 over
// the lower-cased name. Numeric refs return their id unchanged.
func (r EventRef) ShortID() uint32 {
	if r.Name == "" {
		return r.ID
	}
	return ShortID(r.Name)
}

func (r EventRef) IsZero() bool { return r.Name == "" && r.ID == 0 }

func (r EventRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("#%d", r.ID)
}

// ShortID hashes a name the way the engine does.
func ShortID(name string) uint32 {
	h := fnv.New32()
	h.Write([]byte(strings.ToLower(name)))
	return h.Sum32()
}

// CallbackFlags selects the notifications requested when posting an event;
// a Callback carries exactly one of them as its Type.
type CallbackFlags uint32

const (
	CallbackEndOfEvent CallbackFlags = 1 << iota
	CallbackDuration
)

func (f CallbackFlags) Has(o CallbackFlags) bool { return f&o == o }

func (f CallbackFlags) String() string {
	var parts []string
	if f.Has(CallbackEndOfEvent) {
		parts = append(parts, "EndOfEvent")
	}
	if f.Has(CallbackDuration) {
		parts = append(parts, "Duration")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Callback is a notification produced by the engine for a playing instance.
type Callback struct {
	Type      CallbackFlags
	PlayingID PlayingID
	Object    ObjectID
	Event     uint32
	Duration  time.Duration // set for CallbackDuration
}
