// Package credentials persists the bridge address and application key.
//
// The file holds two lines: the bridge address, then the key.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileName is the default credential file name.
const FileName = "haparty.dat"

var (
	// ErrNotFound is returned by Load when no credential file exists.
	ErrNotFound = errors.New("credentials not found")
	// ErrMalformed is returned by Load when the file does not hold both lines.
	ErrMalformed = errors.New("malformed credentials file")
)

// Credentials identify a paired bridge.
type Credentials struct {
	Address string
	Token   string
}

// IsZero reports whether either field is missing.
func (c Credentials) IsZero() bool {
	return c.Address == "" || c.Token == ""
}

// Store reads and writes credentials at a fixed path.
type Store struct {
	path string
}

// NewStore returns a store at path, or at DefaultPath when path is empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{path: path}, nil
}

// DefaultPath returns the credential file location in the per-user
// configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "haparty", FileName), nil
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the credentials.
func (s *Store) Load() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, err
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return Credentials{}, fmt.Errorf("%w: %s", ErrMalformed, s.path)
	}

	creds := Credentials{
		Address: strings.TrimSpace(lines[0]),
		Token:   strings.TrimSpace(lines[1]),
	}
	if creds.IsZero() {
		return Credentials{}, fmt.Errorf("%w: %s", ErrMalformed, s.path)
	}
	return creds, nil
}

// Save writes the credentials atomically, creating the directory if needed.
func (s *Store) Save(creds Credentials) error {
	if creds.IsZero() {
		return fmt.Errorf("refusing to save incomplete credentials")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	data := creds.Address + "\n" + creds.Token + "\n"
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// LoadOrInit loads the stored credentials. When none exist it calls init,
// saves the result and returns it. Any other load error is returned as is.
func (s *Store) LoadOrInit(ctx context.Context, init func(context.Context) (Credentials, error)) (Credentials, error) {
	creds, err := s.Load()
	if err == nil {
		log.Debug().Str("path", s.path).Str("bridge", creds.Address).Msg("Loaded credentials")
		return creds, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Credentials{}, err
	}

	log.Info().Str("path", s.path).Msg("No stored credentials, pairing with bridge")

	creds, err = init(ctx)
	if err != nil {
		return Credentials{}, err
	}
	if err := s.Save(creds); err != nil {
		return Credentials{}, fmt.Errorf("save credentials: %w", err)
	}

	log.Info().Str("path", s.path).Str("bridge", creds.Address).Msg("Credentials saved")
	return creds, nil
}
