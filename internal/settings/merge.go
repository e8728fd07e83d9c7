package settings

// Block names one sub-block of Settings.
type Block int

const (
	BlockMemory Block = iota
	BlockStream
	BlockDevice
	BlockInit
	BlockPlatform
	BlockMusic
	BlockComm
	BlockPlugin
)

var blockNames = [...]string{"memory", "stream", "device", "init", "platform", "music", "comm", "plugin"}

func (b Block) String() string {
	if b < 0 || int(b) >= len(blockNames) {
		return "unknown"
	}
	return blockNames[b]
}

// Override replaces exactly one sub-block with caller-supplied values.
type Override struct {
	block Block
	apply func(*Settings)
}

func (o Override) Block() Block { return o.block }

func WithMemSettings(m MemSettings) Override {
	return Override{BlockMemory, func(s *Settings) { s.Memory = m }}
}

func WithStreamSettings(v StreamSettings) Override {
	return Override{BlockStream, func(s *Settings) { s.Stream = v }}
}

func WithDeviceSettings(v DeviceSettings) Override {
	return Override{BlockDevice, func(s *Settings) { s.Device = v }}
}

func WithInitSettings(v InitSettings) Override {
	return Override{BlockInit, func(s *Settings) { s.Init = v }}
}

func WithPlatformSettings(v PlatformSettings) Override {
	return Override{BlockPlatform, func(s *Settings) { s.Platform = v }}
}

func WithMusicSettings(v MusicSettings) Override {
	return Override{BlockMusic, func(s *Settings) { s.Music = v }}
}

func WithCommSettings(v CommSettings) Override {
	return Override{BlockComm, func(s *Settings) { s.Comm = v }}
}

func WithPluginSettings(v PluginSettings) Override {
	return Override{BlockPlugin, func(s *Settings) { s.Plugin = v }}
}

// Merge folds overrides, in order, over Defaults(). A later override of a
// block fully replaces an earlier one; untouched blocks keep their defaults.
func Merge(overrides ...Override) Settings {
	s := Defaults()
	for _, o := range overrides {
		if o.apply != nil {
			o.apply(&s)
		}
	}
	return s
}

// Builder accumulates overrides. Each With* call returns a new Builder, so a
// Builder value can be shared and extended without affecting other holders.
type Builder struct {
	overrides []Override
}

func NewBuilder(overrides ...Override) Builder {
	return Builder{}.with(overrides...)
}

func (b Builder) with(o ...Override) Builder {
	next := make([]Override, 0, len(b.overrides)+len(o))
	next = append(next, b.overrides...)
	next = append(next, o...)
	return Builder{overrides: next}
}

func (b Builder) With(o ...Override) Builder               { return b.with(o...) }
func (b Builder) WithMemSettings(v MemSettings) Builder     { return b.with(WithMemSettings(v)) }
func (b Builder) WithStreamSettings(v StreamSettings) Builder {
	return b.with(WithStreamSettings(v))
}
func (b Builder) WithDeviceSettings(v DeviceSettings) Builder {
	return b.with(WithDeviceSettings(v))
}
func (b Builder) WithInitSettings(v InitSettings) Builder { return b.with(WithInitSettings(v)) }
func (b Builder) WithPlatformSettings(v PlatformSettings) Builder {
	return b.with(WithPlatformSettings(v))
}
func (b Builder) WithMusicSettings(v MusicSettings) Builder { return b.with(WithMusicSettings(v)) }
func (b Builder) WithCommSettings(v CommSettings) Builder   { return b.with(WithCommSettings(v)) }
func (b Builder) WithPluginSettings(v PluginSettings) Builder {
	return b.with(WithPluginSettings(v))
}

// Overrides returns a copy of the accumulated overrides.
func (b Builder) Overrides() []Override {
	out := make([]Override, len(b.overrides))
	copy(out, b.overrides)
	return out
}

// Build finalizes the accumulated overrides into one Settings value.
func (b Builder) Build() Settings {
	return Merge(b.overrides...)
}
