// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weaviatetrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "weaviatetrace", cfg.Telemetry.ServiceName)
	assert.Equal(t, "TraceDemo", cfg.Demo.Collection)
}

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_OverlaysFile(t *testing.T) {
	path := writeConfig(t, `
weaviate:
  url: http://weaviate:8080
  grpc_addr: weaviate:50051
  client_version: 3.26.0
demo:
  collection: Articles
  queries: [ships]
  workers: 2
  ready_timeout: 5s
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://weaviate:8080", cfg.Weaviate.URL)
	assert.Equal(t, "weaviate:50051", cfg.Weaviate.GRPCAddr)
	assert.Equal(t, "3.26.0", cfg.Weaviate.ClientVersion)
	assert.Equal(t, "Articles", cfg.Demo.Collection)
	assert.Equal(t, []string{"ships"}, cfg.Demo.Queries)
	assert.Equal(t, 2, cfg.Demo.Workers)
	assert.Equal(t, 5*time.Second, cfg.Demo.ReadyTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset fields keep their defaults.
	assert.Equal(t, 5, cfg.Demo.Limit)
	assert.Equal(t, "auto", cfg.Log.Format)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "weaviate: [unclosed"))
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `
demo:
  workers: 0
log:
  level: loud
`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "Config.Demo.Workers")
		assert.ErrorContains(t, err, "Config.Log.Level")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"url required", func(c *Config) { c.Weaviate.URL = "" }, "Weaviate.URL"},
		{"grpc addr needs a port", func(c *Config) { c.Weaviate.GRPCAddr = "weaviate" }, "Weaviate.GRPCAddr"},
		{"collection name rules", func(c *Config) { c.Demo.Collection = "trace-demo" }, "Demo.Collection"},
		{"collection required", func(c *Config) { c.Demo.Collection = "" }, "Demo.Collection"},
		{"ready timeout", func(c *Config) { c.Demo.ReadyTimeout = 0 }, "Demo.ReadyTimeout"},
		{"at least one query", func(c *Config) { c.Demo.Queries = nil }, "Demo.Queries"},
		{"no blank queries", func(c *Config) { c.Demo.Queries = []string{""} }, "Demo.Queries[0]"},
		{"positive rate", func(c *Config) { c.Demo.RPS = 0 }, "Demo.RPS"},
		{"bounded limit", func(c *Config) { c.Demo.Limit = 500 }, "Demo.Limit"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "Log.Format"},
		{"metrics addr", func(c *Config) { c.MetricsAddr = "nine-four-six-four" }, "MetricsAddr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	logger, err := LogConfig{Level: "warn", Format: "json"}.newLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = LogConfig{Level: "loud"}.newLogger()
	assert.Error(t, err)
}

func TestNewValidator_CollectionTag(t *testing.T) {
	type target struct {
		Name string `validate:"weaviate_collection"`
	}
	v := newValidator()
	assert.NoError(t, v.Struct(target{Name: "Article"}))
	assert.Error(t, v.Struct(target{Name: "article"}))
	assert.Error(t, v.Struct(target{Name: ""}))
}
