package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load reads the file at path, decodes it as YAML (.yaml, .yml) or JSON
// (anything else) and applies environment overrides.
func Load(path string) (Export, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Export{}, fmt.Errorf("config: read: %w", err)
	}
	var e Export
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = Decode(b, &e, true)
	default:
		err = Decode(b, &e, false)
	}
	if err != nil {
		return Export{}, err
	}
	if err := ApplyEnv(&e); err != nil {
		return Export{}, err
	}
	return e, nil
}

// Decode parses b into e. Unknown JSON fields are rejected so typos in job
// files surface early.
func Decode(b []byte, e *Export, isYAML bool) error {
	if isYAML {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(e); err != nil {
			return fmt.Errorf("config: decode yaml: %w", err)
		}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(e); err != nil {
		return fmt.Errorf("config: decode json: %w", err)
	}
	return nil
}

// ApplyEnv overrides runtime and metrics settings from the environment.
// Variables that are unset leave the decoded values alone.
func ApplyEnv(e *Export) error {
	if err := env.Parse(&e.Runtime); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	if err := env.Parse(&e.Metrics); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	return nil
}
