// Package store persists network credentials and the control secret across
// restarts. It is the only writer of the credentials file; the core treats
// the format as opaque.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"gopkg.in/yaml.v3"
)

// DefaultSecret is used until the operator sets one during provisioning.
const DefaultSecret = "1234"

// MinSecretLen is the minimum accepted control-secret length.
const MinSecretLen = 4

// Store holds the persisted credentials and writes them back on change.
type Store struct {
	path string
	data fileData
}

type fileData struct {
	SSID          string `yaml:"ssid"`
	Password      string `yaml:"password"`
	ControlSecret string `yaml:"control_secret"`
}

// Load reads the credentials file at path. A missing file is not an error:
// it yields an empty store with the default control secret, which is the
// factory state driving the boot decision into provisioning.
func Load(path string) (*Store, error) {
	s := &Store{path: path, data: fileData{ControlSecret: DefaultSecret}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			debug.Info("No credentials file at %s (factory state)", path)
			return s, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	if s.data.ControlSecret == "" {
		s.data.ControlSecret = DefaultSecret
	}

	debug.Info("Credentials loaded")
	if s.data.SSID != "" {
		debug.Value("SSID", s.data.SSID)
	}
	return s, nil
}

// SSID returns the stored network name, empty when never provisioned.
func (s *Store) SSID() string { return s.data.SSID }

// Password returns the stored network password.
func (s *Store) Password() string { return s.data.Password }

// ControlSecret returns the shared secret commands must carry.
func (s *Store) ControlSecret() string { return s.data.ControlSecret }

// SaveNetwork stores new network credentials and writes them to disk.
func (s *Store) SaveNetwork(ssid, password string) error {
	if ssid == "" {
		return fmt.Errorf("ssid must not be empty")
	}
	s.data.SSID = ssid
	s.data.Password = password
	return s.write()
}

// SaveSecret stores a new control secret and writes it to disk.
func (s *Store) SaveSecret(secret string) error {
	if len(secret) < MinSecretLen {
		return fmt.Errorf("control secret must be at least %d characters", MinSecretLen)
	}
	s.data.ControlSecret = secret
	return s.write()
}

// Clear resets the store to factory state and removes the file.
func (s *Store) Clear() error {
	s.data = fileData{ControlSecret: DefaultSecret}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	debug.Info("Credentials cleared")
	return nil
}

// write persists atomically: temp file in the same directory, then rename.
func (s *Store) write() error {
	raw, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close credentials file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod credentials file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename credentials file: %w", err)
	}

	debug.Info("Credentials saved")
	return nil
}
