package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// LoadFile loads a config file, dispatching on extension (.hcl or
// .json; anything else is tried as HCL then falls back to JSON), and
// fills in any field the file left zero-valued with the built-in
// defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg, err = loadJSON(data)
	case ".hcl":
		cfg, err = loadHCL(data, path)
	default:
		if cfg, err = loadHCL(data, path); err != nil {
			cfg, err = loadJSON(data)
		}
	}
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func loadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: HCL parse error: %s", diags.Error())
	}
	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("config: HCL decode error: %s", diags.Error())
	}
	return &cfg, nil
}

func loadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: JSON parse error: %w", err)
	}
	return &cfg, nil
}

// SaveFile writes cfg to path, choosing JSON or HCL by extension
// (defaulting to JSON), via the same write-temp-fsync-rename discipline
// the zone store uses, so a config save can't corrupt the file on crash.
func SaveFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.ToLower(filepath.Ext(path)) == ".hcl" {
		data, err = marshalHCL(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("config: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}

func marshalHCL(cfg *Config) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(cfg, f.Body())
	return f.Bytes(), nil
}
