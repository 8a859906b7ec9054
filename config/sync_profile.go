package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SyncProfile is a small hand-editable settings file for external-sync
// defaults, kept separate from the JSON app config the same way the
// teacher's own project keeps song data (YAML, tag style `yaml:",omitempty"`)
// apart from its window/UI preferences.
type SyncProfile struct {
	Mode              string `yaml:"mode,omitempty"`
	ClockTicksPerLine int    `yaml:"clockTicksPerLine,omitempty"`
	KillWhenLooped    bool   `yaml:"killWhenLooped,omitempty"`
}

// DefaultSyncProfile returns a profile with external sync off ("off",
// i.e. engine.SyncOff) and ClockTicksPerLine set to 6. The engine takes
// one tick per external clock; ClockTicksPerLine and KillWhenLooped are
// stored in the file but not read by the engine or the CLI.
func DefaultSyncProfile() *SyncProfile {
	return &SyncProfile{
		Mode:              "off",
		ClockTicksPerLine: 6,
		KillWhenLooped:    false,
	}
}

func syncProfilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sync.yaml"), nil
}

// LoadSyncProfile reads sync.yaml, or returns defaults if not found.
func LoadSyncProfile() (*SyncProfile, error) {
	path, err := syncProfilePath()
	if err != nil {
		return DefaultSyncProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSyncProfile(), nil
		}
		return nil, err
	}

	var p SyncProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// Save writes the profile to sync.yaml.
func (p *SyncProfile) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := syncProfilePath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
