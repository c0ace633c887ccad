// Package config layers an optional YAML defaults file under the CLI
// flag surface §6.3 defines, scaled down from Chartly2.0's
// pkg/config/loader.go: a base file supplies defaults, explicit flags
// always win.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the relay's fully-resolved runtime configuration.
type Config struct {
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	DatabaseID          string        `yaml:"databaseId"`
	AccessToken         string        `yaml:"accessToken"`
	EphemeralTokenTTL   time.Duration `yaml:"-"`
	EphemeralTokenTTLMs int64         `yaml:"ephemeralTokenTtlMs"`
	DataFile            string        `yaml:"dataFile"`
}

// Defaults returns the §6.3 default values before any file or flag is
// applied.
func Defaults() Config {
	return Config{
		Host:                "0.0.0.0",
		Port:                10159,
		EphemeralTokenTTLMs: 3_600_000,
		EphemeralTokenTTL:   3_600_000 * time.Millisecond,
	}
}

// LoadFile reads a YAML defaults file at path and merges it over base,
// returning the merged result. A field absent from the file leaves
// base's value untouched.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	merged := base
	if fromFile.Host != "" {
		merged.Host = fromFile.Host
	}
	if fromFile.Port != 0 {
		merged.Port = fromFile.Port
	}
	if fromFile.DatabaseID != "" {
		merged.DatabaseID = fromFile.DatabaseID
	}
	if fromFile.AccessToken != "" {
		merged.AccessToken = fromFile.AccessToken
	}
	if fromFile.EphemeralTokenTTLMs != 0 {
		merged.EphemeralTokenTTLMs = fromFile.EphemeralTokenTTLMs
		merged.EphemeralTokenTTL = time.Duration(fromFile.EphemeralTokenTTLMs) * time.Millisecond
	}
	if fromFile.DataFile != "" {
		merged.DataFile = fromFile.DataFile
	}
	return merged, nil
}

// Validate reports the first missing required field, mirroring the
// required-ness §6.3 assigns to --database-id and --access-token.
func (c Config) Validate() error {
	if c.DatabaseID == "" {
		return fmt.Errorf("config: database-id is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("config: access-token is required")
	}
	return nil
}
