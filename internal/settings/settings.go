package settings

import (
	"errors"
	"fmt"
	"time"
)

// MemSettings configures the engine's memory manager.
type MemSettings struct {
	PoolSize         uint64 `toml:"pool_size"`         // bytes reserved up front
	DeviceSizeLimit  uint64 `toml:"device_size_limit"` // 0 = unlimited
	Granularity      uint32 `toml:"granularity"`       // allocation block, power of two
	TrackAllocations bool   `toml:"track_allocations"` // debug bookkeeping of every allocation
}

// StreamSettings configures the streaming manager.
type StreamSettings struct {
	MaxConcurrentStreams uint32 `toml:"max_concurrent_streams"`
	ReadBufferSize       uint32 `toml:"read_buffer_size"`
}

// DeviceSettings configures the low-level I/O device used by the streaming manager.
type DeviceSettings struct {
	IOMemorySize    uint32        `toml:"io_memory_size"`
	Granularity     uint32        `toml:"granularity"`
	Scheduler       string        `toml:"scheduler"` // "blocking" or "deferred"
	MaxConcurrentIO uint32        `toml:"max_concurrent_io"`
	IdleWaitTime    time.Duration `toml:"idle_wait_time"`
}

// InitSettings configures the sound engine core.
type InitSettings struct {
	MaxNumPaths         uint32 `toml:"max_num_paths"`
	CommandQueueSize    uint32 `toml:"command_queue_size"`
	NumSamplesPerFrame  uint32 `toml:"num_samples_per_frame"`
	ContinuousLookAhead uint32 `toml:"continuous_look_ahead"`
	MaxListeners        uint32 `toml:"max_listeners"`
	InstallAssertHook   bool   `toml:"install_assert_hook"`
	GameSyncPreparation bool   `toml:"game_sync_preparation"`
	PluginDLLPath       string `toml:"plugin_dll_path"`
}

// PlatformSettings configures the platform audio output.
type PlatformSettings struct {
	SampleRate        uint32 `toml:"sample_rate"`
	NumRefillsInVoice uint16 `toml:"num_refills_in_voice"`
	AudioAPI          string `toml:"audio_api"`
	ThreadPriority    int    `toml:"thread_priority"`
}

// MusicSettings configures the interactive music engine.
type MusicSettings struct {
	StreamingLookAheadRatio float32 `toml:"streaming_look_ahead_ratio"`
}

// CommSettings configures the authoring-tool communication channel.
type CommSettings struct {
	Enabled        bool   `toml:"enabled"`
	DiscoveryPort  uint16 `toml:"discovery_port"`
	AppNetworkName string `toml:"app_network_name"`
	InitSystemLib  bool   `toml:"init_system_lib"`
}

// PluginSettings are the bridge's own behaviour flags.
type PluginSettings struct {
	InitLanguage         string `toml:"init_language"`
	BanksLocation        string `toml:"banks_location"`
	InitBank             string `toml:"init_bank"`
	SpawnDefaultListener bool   `toml:"spawn_default_listener"`
}

// Settings is the complete bundle handed to the engine lifecycle.
type Settings struct {
	Memory   MemSettings      `toml:"memory"`
	Stream   StreamSettings   `toml:"stream"`
	Device   DeviceSettings   `toml:"device"`
	Init     InitSettings     `toml:"init"`
	Platform PlatformSettings `toml:"platform"`
	Music    MusicSettings    `toml:"music"`
	Comm     CommSettings     `toml:"comm"`
	Plugin   PluginSettings   `toml:"plugin"`
}

func DefaultMemSettings() MemSettings {
	return MemSettings{
		PoolSize:    64 << 20,
		Granularity: 16 << 10,
	}
}

func DefaultStreamSettings() StreamSettings {
	return StreamSettings{
		MaxConcurrentStreams: 64,
		ReadBufferSize:       64 << 10,
	}
}

func DefaultDeviceSettings() DeviceSettings {
	return DeviceSettings{
		IOMemorySize:    2 << 20,
		Granularity:     32 << 10,
		Scheduler:       "blocking",
		MaxConcurrentIO: 8,
		IdleWaitTime:    100 * time.Millisecond,
	}
}

func DefaultInitSettings() InitSettings {
	return InitSettings{
		MaxNumPaths:         255,
		CommandQueueSize:    256 << 10,
		NumSamplesPerFrame:  1024,
		ContinuousLookAhead: 1,
		MaxListeners:        8,
		InstallAssertHook:   true,
	}
}

func DefaultPlatformSettings() PlatformSettings {
	return PlatformSettings{
		SampleRate:        48000,
		NumRefillsInVoice: 4,
		AudioAPI:          "auto",
	}
}

func DefaultMusicSettings() MusicSettings {
	return MusicSettings{StreamingLookAheadRatio: 1.0}
}

func DefaultCommSettings() CommSettings {
	return CommSettings{
		Enabled:        true,
		DiscoveryPort:  24024,
		AppNetworkName: "rrbridge",
		InitSystemLib:  true,
	}
}

func DefaultPluginSettings() PluginSettings {
	return PluginSettings{
		InitLanguage:         "English(US)",
		BanksLocation:        "soundbanks",
		InitBank:             "Init.bnk",
		SpawnDefaultListener: true,
	}
}

// Defaults returns the engine-defined default for every sub-block.
func Defaults() Settings {
	return Settings{
		Memory:   DefaultMemSettings(),
		Stream:   DefaultStreamSettings(),
		Device:   DefaultDeviceSettings(),
		Init:     DefaultInitSettings(),
		Platform: DefaultPlatformSettings(),
		Music:    DefaultMusicSettings(),
		Comm:     DefaultCommSettings(),
		Plugin:   DefaultPluginSettings(),
	}
}

// --- field validation, run by the lifecycle step that consumes each block ---

func isPow2(v uint32) bool { return v != 0 && v&(v-1) == 0 }

func (m MemSettings) Validate() error {
	if m.PoolSize == 0 {
		return errors.New("memory: pool_size must be positive")
	}
	if !isPow2(m.Granularity) {
		return fmt.Errorf("memory: granularity %d is not a power of two", m.Granularity)
	}
	if m.DeviceSizeLimit != 0 && m.DeviceSizeLimit < m.PoolSize {
		return fmt.Errorf("memory: device_size_limit %d below pool_size %d", m.DeviceSizeLimit, m.PoolSize)
	}
	return nil
}

func (s StreamSettings) Validate() error {
	if s.MaxConcurrentStreams == 0 {
		return errors.New("stream: max_concurrent_streams must be positive")
	}
	if s.ReadBufferSize == 0 {
		return errors.New("stream: read_buffer_size must be positive")
	}
	return nil
}

func (d DeviceSettings) Validate() error {
	if !isPow2(d.Granularity) {
		return fmt.Errorf("device: granularity %d is not a power of two", d.Granularity)
	}
	if d.IOMemorySize < d.Granularity {
		return fmt.Errorf("device: io_memory_size %d below granularity %d", d.IOMemorySize, d.Granularity)
	}
	switch d.Scheduler {
	case "blocking", "deferred":
	default:
		return fmt.Errorf("device: unknown scheduler %q", d.Scheduler)
	}
	if d.MaxConcurrentIO == 0 {
		return errors.New("device: max_concurrent_io must be positive")
	}
	return nil
}

func (i InitSettings) Validate() error {
	if i.NumSamplesPerFrame == 0 || !isPow2(i.NumSamplesPerFrame) {
		return fmt.Errorf("init: num_samples_per_frame %d is not a power of two", i.NumSamplesPerFrame)
	}
	if i.MaxListeners == 0 {
		return errors.New("init: max_listeners must be positive")
	}
	if i.CommandQueueSize == 0 {
		return errors.New("init: command_queue_size must be positive")
	}
	return nil
}

func (p PlatformSettings) Validate() error {
	if p.SampleRate < 8000 || p.SampleRate > 192000 {
		return fmt.Errorf("platform: sample_rate %d out of range", p.SampleRate)
	}
	if p.NumRefillsInVoice < 2 {
		return fmt.Errorf("platform: num_refills_in_voice %d below 2", p.NumRefillsInVoice)
	}
	return nil
}

func (m MusicSettings) Validate() error {
	if m.StreamingLookAheadRatio <= 0 {
		return errors.New("music: streaming_look_ahead_ratio must be positive")
	}
	return nil
}

func (c CommSettings) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DiscoveryPort == 0 {
		return errors.New("comm: discovery_port must be set")
	}
	if c.AppNetworkName == "" {
		return errors.New("comm: app_network_name must be set")
	}
	return nil
}

func (p PluginSettings) Validate() error {
	if p.InitLanguage == "" {
		return errors.New("plugin: init_language must be set")
	}
	if p.BanksLocation == "" {
		return errors.New("plugin: banks_location must be set")
	}
	return nil
}
