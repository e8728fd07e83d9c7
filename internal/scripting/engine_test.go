package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuiltinSceneLoadsWhenDirEmpty(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	assert.True(t, e.Builtin())

	scene, err := e.Setup()
	require.NoError(t, err)
	assert.Equal(t, []string{"TheBank.bnk"}, scene.Banks)
	require.Len(t, scene.Spawns, 2)

	cam, drone := scene.Spawns[0], scene.Spawns[1]
	assert.Equal(t, "listener", cam.Kind)
	assert.True(t, cam.Default)
	assert.Equal(t, 15.0, cam.Z)

	assert.Equal(t, "emitter", drone.Kind)
	assert.Equal(t, "PlayDoppler", drone.Event)
	assert.True(t, drone.AutoPost)
	assert.True(t, drone.Looping)
	assert.Equal(t, -45.0, drone.X)
}

func TestDroneUpdate(t *testing.T) {
	e, err := NewEngineFromSource(DopplerDrone, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	cmds := e.Update(1, 0.2)
	require.Len(t, cmds, 2)
	assert.Equal(t, "move", cmds[0].Type)
	assert.Equal(t, "drone", cmds[0].Key)
	assert.InDelta(t, -30, cmds[0].X, 1e-9)
	assert.Equal(t, "rtpc", cmds[1].Type)
	assert.Equal(t, "Doppler", cmds[1].Name)

	// Returning leg: at t=7s the drone is 15m back from the far end.
	cmds = e.Update(7, 0.2)
	assert.InDelta(t, 30, cmds[0].X, 1e-9)
}

func TestDopplerFactor(t *testing.T) {
	e, err := NewEngineFromSource(DopplerDrone, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	// Approaching from the left: pitch goes up.
	f, err := e.DopplerFactor(1)
	require.NoError(t, err)
	assert.InDelta(t, 340.0/325.0, f, 1e-9)

	// Receding to the right on the outbound leg: pitch goes down.
	f, err = e.DopplerFactor(4)
	require.NoError(t, err)
	assert.InDelta(t, 340.0/355.0, f, 1e-9)
}

func TestLoadDirScripts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.lua"), []byte(`
function setup()
  return { spawns = { { key = "a", kind = "emitter", event = "Hit", despawn_on_silent = true } } }
end
function update(t, dt)
  return {
    { type = "spawn", key = "b", kind = "emitter", event = "Blip", auto_post = true },
    { type = "despawn", key = "a" },
  }
end
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	assert.False(t, e.Builtin())

	scene, err := e.Setup()
	require.NoError(t, err)
	require.Len(t, scene.Spawns, 1)
	assert.True(t, scene.Spawns[0].DespawnOnSilent)

	cmds := e.Update(0, 0)
	require.Len(t, cmds, 2)
	require.NotNil(t, cmds[0].Spawn)
	assert.Equal(t, "Blip", cmds[0].Spawn.Event)
	assert.True(t, cmds[0].Spawn.AutoPost)
	assert.Equal(t, "despawn", cmds[1].Type)
	assert.Nil(t, cmds[1].Spawn)
}

func TestBrokenScript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644))
	_, err := NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}

func TestUpdateErrorYieldsNoCommands(t *testing.T) {
	e, err := NewEngineFromSource(`function update(t, dt) error("boom") end`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	assert.Nil(t, e.Update(0, 0))

	scene, err := e.Setup()
	require.NoError(t, err, "missing setup is an empty scene")
	assert.Empty(t, scene.Spawns)
}

func TestSetupMustReturnTable(t *testing.T) {
	e, err := NewEngineFromSource(`function setup() return 3 end`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	_, err = e.Setup()
	assert.ErrorContains(t, err, "want table")
}
