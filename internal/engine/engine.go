// Package engine describes the synchronous call surface of the external audio
// engine. Implementations own mixing, streaming and bank formats; the bridge
// only drives object lifecycle, poses, listeners and event posting.
package engine

import "github.com/rrbridge/rrbridge/internal/settings"

// Engine is the external audio engine. Every call is synchronous and returns
// within a tick; none of them may be issued before the matching Init* step
// succeeded.
type Engine interface {
	InitMemory(settings.MemSettings) error
	TermMemory()
	InitStreaming(stream settings.StreamSettings, device settings.DeviceSettings, banksPath, language string) error
	TermStreaming()
	InitPlatform(settings.PlatformSettings) error
	TermPlatform()
	InitCore(settings.InitSettings) error
	TermCore()
	InitMusic(settings.MusicSettings) error
	TermMusic()
	InitComm(settings.CommSettings) error
	TermComm()

	LoadBank(name string) (BankHandle, error)
	UnloadBank(h BankHandle) error

	CreateObject(id ObjectID, label string) error
	DestroyObject(id ObjectID)
	DestroyAllObjects() error
	SetPosition(id ObjectID, t Transform) error
	SetListeners(ids []ObjectID) error

	PostEvent(id ObjectID, ev EventRef, flags CallbackFlags) (PlayingID, error)
	StopAll(id ObjectID)
	StopPlaying(pid PlayingID)
	SetRTPC(name string, value float32, id ObjectID) error

	RenderAudio() error
	DrainCallbacks(fn func(Callback))
}
