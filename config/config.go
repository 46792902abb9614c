/*
 * Copyright (c) 2026, Datalyr, Inc. (https://datalyr.com).
 *
 * Datalyr, Inc. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Duration is a time.Duration that yaml.v2 can decode from either a Go
// duration string ("15s") or a bare millisecond count.
type Duration time.Duration

// Std converts to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.v2 unmarshalling for both accepted shapes.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var ms int64
	if err := unmarshal(&ms); err != nil {
		return err
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// Config holds every tunable of the SDK. A Config is read once at
// Initialize and treated as immutable afterwards; changing the conversion
// template requires re-initialization.
type Config struct {
	WorkspaceID string `yaml:"workspace_id"`
	APIKey      string `yaml:"api_key"`
	Endpoint    string `yaml:"endpoint"`
	// SigningSecret, when set, switches delivery auth from the plain API-key
	// header to a short-lived HS256 bearer token minted per batch.
	SigningSecret string `yaml:"signing_secret"`

	Queue struct {
		MaxQueueSize  int      `yaml:"max_queue_size"`
		BatchSize     int      `yaml:"batch_size"`
		FlushInterval Duration `yaml:"flush_interval"`
		RetryDelay    Duration `yaml:"retry_delay"`
		MaxRetries    int      `yaml:"max_retries"`
	} `yaml:"queue"`

	Session struct {
		Timeout Duration `yaml:"timeout"`
	} `yaml:"session"`

	Attribution struct {
		WebFetchTTL Duration `yaml:"web_fetch_ttl"`
		JourneyCap  int      `yaml:"journey_cap"`
	} `yaml:"attribution"`

	Conversion struct {
		Template string `yaml:"template"`
	} `yaml:"conversion"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	// StorageDir selects the file-backed store. Empty means memory-only
	// operation (no restart durability).
	StorageDir string `yaml:"storage_dir"`
}

// DefaultConfig returns a Config with the documented defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Endpoint = "https://api.datalyr.com/v1/events"
	cfg.Queue.MaxQueueSize = 100
	cfg.Queue.BatchSize = 10
	cfg.Queue.FlushInterval = Duration(10 * time.Second)
	cfg.Queue.RetryDelay = Duration(time.Second)
	cfg.Queue.MaxRetries = 3
	cfg.Session.Timeout = Duration(30 * time.Minute)
	cfg.Attribution.WebFetchTTL = Duration(5 * time.Minute)
	cfg.Attribution.JourneyCap = 100
	cfg.Log.Level = "INFO"
	return cfg
}

// LoadConfig reads a YAML file, expanding ${VAR} references from the
// environment first. A .env file next to the process, if present, is loaded
// before expansion.
func LoadConfig(filePath string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(file))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configs the SDK cannot run with.
func (c *Config) Validate() error {
	if c.WorkspaceID == "" {
		return fmt.Errorf("workspace_id is required")
	}
	if c.APIKey == "" && c.SigningSecret == "" {
		return fmt.Errorf("either api_key or signing_secret is required")
	}
	if c.Queue.MaxQueueSize <= 0 || c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue sizes must be positive")
	}
	if c.Queue.BatchSize > c.Queue.MaxQueueSize {
		return fmt.Errorf("batch_size cannot exceed max_queue_size")
	}
	if c.Queue.FlushInterval <= 0 || c.Queue.RetryDelay <= 0 {
		return fmt.Errorf("queue intervals must be positive")
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session timeout must be positive")
	}
	if c.Attribution.JourneyCap <= 0 {
		return fmt.Errorf("journey_cap must be positive")
	}
	return nil
}
