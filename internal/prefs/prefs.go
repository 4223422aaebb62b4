// Package prefs persists small user preferences (currently the server port)
// in a namespaced YAML file, read once at startup and written back only
// when a value actually changed.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/eventdeck/eventdeck/internal/model"
)

// Namespace is the preference scope shared with the launcher surface.
const Namespace = "launcher"

// Store is a viper-backed key-value preference store scoped to one
// namespace file.
type Store struct {
	v    *viper.Viper
	path string
}

// DefaultDir returns the preference directory, ~/.config/eventdeck.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "eventdeck")
	}
	return filepath.Join(home, ".config", "eventdeck")
}

// Open reads the namespace file under dir, creating nothing yet. A missing
// file is not an error; defaults apply.
func Open(dir, namespace string) (*Store, error) {
	path := filepath.Join(dir, namespace+".yml")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("port", model.DefaultPort)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("prefs: read %s: %w", path, err)
		}
	}
	return &Store{v: v, path: path}, nil
}

// Port returns the stored server port.
func (s *Store) Port() int {
	return s.v.GetInt("port")
}

// SetPort stores p, writing the file only when the value differs from what
// is already stored.
func (s *Store) SetPort(p int) error {
	if p == s.Port() {
		return nil
	}
	s.v.Set("port", p)
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("prefs: mkdir: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("prefs: write %s: %w", s.path, err)
	}
	return nil
}
