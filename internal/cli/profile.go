package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toolbridge/toolbridge/internal/toolclient"
)

// Profile is a named preset for reaching one agent deployment. Unset fields
// leave the underlying configuration untouched.
type Profile struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
	Retries  *int   `yaml:"retries"`
}

func (p Profile) apply(cfg toolclient.Config) toolclient.Config {
	if p.Endpoint != "" {
		cfg.BaseURL = p.Endpoint
	}
	if p.Timeout != "" {
		if timeout, err := time.ParseDuration(p.Timeout); err == nil && timeout > 0 {
			cfg.Timeout = timeout
		}
	}
	if p.Retries != nil && *p.Retries >= 0 {
		cfg.MaxRetries = *p.Retries
	}
	return cfg
}

// DefaultProfilesPath locates profiles.yaml under the user config dir.
func DefaultProfilesPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "toolbridge", "profiles.yaml"), nil
}

// LoadProfiles reads the named profiles from the given path. A missing file
// yields an empty set rather than an error.
func LoadProfiles(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Profile{}, nil
		}
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	profiles := map[string]Profile{}
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return profiles, nil
}

// LoadProfile resolves one named profile from the default profiles file.
func LoadProfile(name string) (Profile, error) {
	path, err := DefaultProfilesPath()
	if err != nil {
		return Profile{}, err
	}
	profiles, err := LoadProfiles(path)
	if err != nil {
		return Profile{}, err
	}
	profile, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found in %s", name, path)
	}
	return profile, nil
}
