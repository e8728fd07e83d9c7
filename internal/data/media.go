package data

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

var ErrUnsupportedMedia = errors.New("unsupported media format")

// MediaInfo is what the bridge needs to know about an event's media: how long
// one play lasts.
type MediaInfo struct {
	Format     string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// ProbeMedia reads just enough of a media file to know its length.
func ProbeMedia(path string) (MediaInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return probeWAV(f)
	case ".mp3":
		return probeMP3(f)
	case ".ogg":
		return probeOgg(f)
	default:
		return MediaInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, ext)
	}
}

func probeWAV(f *os.File) (MediaInfo, error) {
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return MediaInfo{}, fmt.Errorf("wav: %s is not a valid wav file", f.Name())
	}
	format := d.Format()
	if format == nil {
		return MediaInfo{}, fmt.Errorf("wav: %s: missing format chunk", f.Name())
	}
	dur, err := d.Duration()
	if err != nil {
		return MediaInfo{}, fmt.Errorf("wav: %w", err)
	}
	return MediaInfo{
		Format:     "wav",
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		Duration:   dur,
	}, nil
}

func probeMP3(f *os.File) (MediaInfo, error) {
	d, err := gomp3.NewDecoder(f)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("mp3: %w", err)
	}
	// go-mp3 always decodes to 16-bit stereo: 4 bytes per frame.
	frames := d.Length() / 4
	if frames < 0 || d.SampleRate() == 0 {
		return MediaInfo{}, fmt.Errorf("mp3: %s: unknown length", f.Name())
	}
	return MediaInfo{
		Format:     "mp3",
		SampleRate: d.SampleRate(),
		Channels:   2,
		Duration:   framesToDuration(frames, d.SampleRate()),
	}, nil
}

func probeOgg(f *os.File) (MediaInfo, error) {
	r, err := oggvorbis.NewReader(f)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("ogg: %w", err)
	}
	frames := r.Length()
	if frames <= 0 || r.SampleRate() == 0 {
		return MediaInfo{}, fmt.Errorf("ogg: %s: unknown length", f.Name())
	}
	return MediaInfo{
		Format:     "ogg",
		SampleRate: r.SampleRate(),
		Channels:   r.Channels(),
		Duration:   framesToDuration(frames, r.SampleRate()),
	}, nil
}

func framesToDuration(frames int64, rate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(rate)
}
