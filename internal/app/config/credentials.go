package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Credentials is the on-disk fallback for the API token. The token is
// stored in the password entry.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DefaultCredentialsPath returns $HOME/.config/tibber-subscribe/credentials.yaml,
// or a relative credentials.yaml when no home directory is known.
func DefaultCredentialsPath(getenv func(string) string) string {
	home := getenv("HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	if home == "" {
		return "credentials.yaml"
	}
	return filepath.Join(home, ".config", "tibber-subscribe", "credentials.yaml")
}

func ReadCredentials(path string) (Credentials, error) {
	var creds Credentials
	raw, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}
	if err := yaml.Unmarshal(raw, &creds); err != nil {
		return creds, fmt.Errorf("parse %s: %w", path, err)
	}
	if creds.Password == "" {
		return creds, errors.New("credentials file has no password entry")
	}
	return creds, nil
}
