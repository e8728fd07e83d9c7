package scripting

// DopplerDrone is the built-in scene: a listener 15m in front of a 90m track
// and a drone flying it back and forth at 15 m/s while looping PlayDoppler.
// The Doppler parameter is the pitch factor heard by the static listener.
const DopplerDrone = `
SPEED_OF_SOUND = 340
TRAJECTORY_LENGTH = 90
TRAJECTORY_SPEED = 15

function setup()
  return {
    banks = { "TheBank.bnk" },
    spawns = {
      { key = "default_listener", kind = "listener", default = true, x = 0, y = 0, z = 15 },
      { key = "drone", kind = "emitter", name = "Drone", event = "PlayDoppler",
        auto_post = true, looping = true, x = -TRAJECTORY_LENGTH / 2, y = 0, z = -2 },
    },
  }
end

-- drone_state returns the x position and the direction of travel (+1/-1)
-- at time t of a ping-pong trajectory.
function drone_state(t)
  local leg = TRAJECTORY_LENGTH / TRAJECTORY_SPEED
  local phase = t % (2 * leg)
  if phase < leg then
    return -TRAJECTORY_LENGTH / 2 + phase * TRAJECTORY_SPEED, 1
  end
  return TRAJECTORY_LENGTH / 2 - (phase - leg) * TRAJECTORY_SPEED, -1
end

function sign(v)
  if v > 0 then return 1 elseif v < 0 then return -1 end
  return 0
end

-- doppler_factor is exact for a 1D trajectory and a static listener.
function doppler_factor(t)
  if TRAJECTORY_SPEED >= SPEED_OF_SOUND then
    return 16
  end
  local x, dir = drone_state(t)
  return SPEED_OF_SOUND / (SPEED_OF_SOUND - dir * TRAJECTORY_SPEED * -sign(x))
end

function update(t, dt)
  local x = drone_state(t)
  return {
    { type = "move", key = "drone", x = x, y = 0, z = -2 },
    { type = "rtpc", key = "drone", name = "Doppler", value = doppler_factor(t) },
  }
end
`

// DopplerFactor evaluates the scene's doppler_factor(t).
func (e *Engine) DopplerFactor(t float64) (float64, error) {
	return e.callNumFunc("doppler_factor", t)
}
