package dashboard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"stock-dashboard/src/models"

	"gopkg.in/yaml.v3"
)

// Preferences is the client state kept between runs: the colour theme and a
// convenience copy of the signed-in user. The auth service stays the source
// of truth for the session.
type Preferences struct {
	Theme       string           `yaml:"theme"`
	DisplayName string           `yaml:"display_name,omitempty"`
	Email       string           `yaml:"email,omitempty"`
	Session     *models.MSession `yaml:"session,omitempty"`
}

// -----------------------------------------------------------------------------

// DefaultPreferencesPath is <user config dir>/stock-dashboard/preferences.yaml.
func DefaultPreferencesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "stock-dashboard", "preferences.yaml"), nil
}

// -----------------------------------------------------------------------------

// LoadPreferences reads path. A missing file yields the defaults.
func LoadPreferences(path string) (*Preferences, error) {
	prefs := &Preferences{Theme: string(ThemeDark)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return prefs, nil
		}
		return nil, fmt.Errorf("failed to read preferences '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, prefs); err != nil {
		return nil, fmt.Errorf("failed to parse preferences '%s': %w", path, err)
	}
	prefs.Theme = string(ParseTheme(prefs.Theme))
	return prefs, nil
}

// -----------------------------------------------------------------------------

// Save writes the preferences with owner-only permissions since they may
// hold a session token.
func (p *Preferences) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences '%s': %w", path, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Remember caches the user's display name and email from a session.
func (p *Preferences) Remember(s *models.MSession) {
	p.Session = s
	if s == nil {
		p.DisplayName, p.Email = "", ""
		return
	}
	p.Email = s.User.Email
	p.DisplayName = s.User.Username
	if p.DisplayName == "" {
		p.DisplayName = s.User.Email
	}
}
