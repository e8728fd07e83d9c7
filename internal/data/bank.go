package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrBankNotFound is returned when no manifest exists for a bank name.
var ErrBankNotFound = errors.New("soundbank not found")

// EventDef is one event of a soundbank manifest.
type EventDef struct {
	Name     string        `yaml:"name"`
	Media    string        `yaml:"media"`    // path relative to the manifest
	Loop     bool          `yaml:"loop"`     // never ends until stopped
	Duration time.Duration `yaml:"duration"` // overrides probing when set
	Info     *MediaInfo    `yaml:"-"`
}

// BankManifest describes the events a soundbank provides.
type BankManifest struct {
	Bank   string     `yaml:"bank"`
	Events []EventDef `yaml:"events"`
	Path   string     `yaml:"-"`
}

// BankFile maps a bank name such as "Init.bnk" to its manifest path in dir.
func BankFile(dir, name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, stem+".yaml")
}

// LoadBank loads the manifest of bank name from dir.
func LoadBank(dir, name string) (*BankManifest, error) {
	m, err := LoadBankManifest(BankFile(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s in %s", ErrBankNotFound, name, dir)
	}
	return m, err
}

// LoadBankManifest parses a manifest and resolves each event's duration:
// an explicit duration wins, otherwise the media file is probed. Looping
// events without media keep a zero duration.
func LoadBankManifest(path string) (*BankManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank manifest: %w", err)
	}
	var m BankManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse bank manifest %s: %w", path, err)
	}
	m.Path = path
	if m.Bank == "" {
		m.Bank = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".bnk"
	}

	dir := filepath.Dir(path)
	seen := make(map[string]bool, len(m.Events))
	for i := range m.Events {
		ev := &m.Events[i]
		if ev.Name == "" {
			return nil, fmt.Errorf("bank %s: event %d has no name", m.Bank, i)
		}
		key := strings.ToLower(ev.Name)
		if seen[key] {
			return nil, fmt.Errorf("bank %s: duplicate event %q", m.Bank, ev.Name)
		}
		seen[key] = true

		if ev.Media == "" {
			continue
		}
		info, err := ProbeMedia(filepath.Join(dir, ev.Media))
		if err != nil {
			return nil, fmt.Errorf("bank %s: event %s: %w", m.Bank, ev.Name, err)
		}
		ev.Info = &info
		if ev.Duration == 0 {
			ev.Duration = info.Duration
		}
	}
	return &m, nil
}

// ListBanks loads every manifest in dir, sorted by bank name.
func ListBanks(dir string) ([]*BankManifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	var out []*BankManifest
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		m, err := LoadBankManifest(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bank < out[j].Bank })
	return out, nil
}
