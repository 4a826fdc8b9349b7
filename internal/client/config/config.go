package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vaultsync/vaultsync/internal/client/sync"
	"github.com/vaultsync/vaultsync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".vaultsync", "config.json")
	DefaultRemoteName = "vaultsync"
)

// Config is the explicit configuration value handed to the client at
// construction. There is no shared mutable settings object; the watermark
// lives behind its own store.
type Config struct {
	VaultDir           string   `json:"vault_dir"`
	RemoteFolder       string   `json:"remote_folder"`
	Account            string   `json:"account"`
	ClientID           string   `json:"client_id"`
	ClientSecret       string   `json:"client_secret"`
	Policy             string   `json:"policy"`
	ExcludedFolders    []string `json:"excluded_folders"`
	ExcludedExtensions []string `json:"excluded_extensions"`
	IncludeHidden      bool     `json:"include_hidden"`
	Transfers          int      `json:"transfers"`
	Path               string   `json:"-"`
}

// Validate checks the fields a run cannot proceed without.
func (c *Config) Validate() error {
	if c.VaultDir == "" {
		return fmt.Errorf("config: vault_dir is required")
	}
	if c.Account == "" {
		return fmt.Errorf("config: account is required (run `vaultsync login` first)")
	}
	if c.RemoteFolder == "" {
		c.RemoteFolder = DefaultRemoteName
	}
	if c.Policy == "" {
		c.Policy = string(sync.PolicyPreferNewer)
	}
	if _, err := sync.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Save writes the config as JSON, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Load reads a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	return &cfg, nil
}
