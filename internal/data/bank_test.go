package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a mono 16-bit file of the given number of frames.
func writeWAV(t *testing.T, path string, rate, frames int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, frames),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 64) * 256
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestProbeMediaWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beep.wav")
	writeWAV(t, path, 8000, 4000)

	info, err := ProbeMedia(path)
	require.NoError(t, err)
	assert.Equal(t, "wav", info.Format)
	assert.Equal(t, 8000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 500*time.Millisecond, info.Duration)
}

func TestProbeMediaRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beep.flac")
	writeFile(t, path, "fLaC")

	_, err := ProbeMedia(path)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestProbeMediaRejectsGarbageWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.wav")
	writeFile(t, path, "definitely not riff data")

	_, err := ProbeMedia(path)
	assert.Error(t, err)
}

func TestLoadBankResolvesDurations(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "ping.wav"), 8000, 8000)
	writeFile(t, filepath.Join(dir, "TheBank.yaml"), `
bank: TheBank.bnk
events:
  - name: Ping
    media: ping.wav
  - name: PlayDoppler
    loop: true
  - name: Explicit
    media: ping.wav
    duration: 250ms
`)

	m, err := LoadBank(dir, "TheBank.bnk")
	require.NoError(t, err)
	assert.Equal(t, "TheBank.bnk", m.Bank)
	require.Len(t, m.Events, 3)

	assert.Equal(t, time.Second, m.Events[0].Duration)
	require.NotNil(t, m.Events[0].Info)
	assert.Equal(t, "wav", m.Events[0].Info.Format)

	assert.True(t, m.Events[1].Loop)
	assert.Zero(t, m.Events[1].Duration)
	assert.Nil(t, m.Events[1].Info)

	assert.Equal(t, 250*time.Millisecond, m.Events[2].Duration)
}

func TestLoadBankMissing(t *testing.T) {
	_, err := LoadBank(t.TempDir(), "Nope.bnk")
	assert.ErrorIs(t, err, ErrBankNotFound)
}

func TestLoadBankManifestRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dup.yaml")
	writeFile(t, path, `
events:
  - name: Hit
    duration: 1s
  - name: hit
    duration: 1s
`)
	_, err := LoadBankManifest(path)
	assert.ErrorContains(t, err, "duplicate event")
}

func TestLoadBankManifestDefaultsBankName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Init.yaml")
	writeFile(t, path, "events: []\n")

	m, err := LoadBankManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "Init.bnk", m.Bank)
}

func TestListBanksSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Zeta.yaml"), "events: []\n")
	writeFile(t, filepath.Join(dir, "Alpha.yaml"), "events: []\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	banks, err := ListBanks(dir)
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "Alpha.bnk", banks[0].Bank)
	assert.Equal(t, "Zeta.bnk", banks[1].Bank)
}
