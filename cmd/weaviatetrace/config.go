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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/weaviate-otel/pkg/logging"
	"github.com/AleutianAI/weaviate-otel/pkg/validation"
	"github.com/AleutianAI/weaviate-otel/services/telemetry"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the weaviatetrace configuration file.
type Config struct {
	Weaviate  WeaviateConfig   `yaml:"weaviate"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Demo      DemoConfig       `yaml:"demo"`
	Log       LogConfig        `yaml:"log"`

	// MetricsAddr serves /metrics and /healthz while the demo runs.
	// Empty disables the server.
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// WeaviateConfig points at the Weaviate instance.
type WeaviateConfig struct {
	URL      string `yaml:"url" validate:"required,url"`
	GRPCAddr string `yaml:"grpc_addr" validate:"omitempty,hostname_port"`

	// ClientVersion overrides the detected client library version.
	ClientVersion string `yaml:"client_version"`

	// ConnectionSpan emits a db.weaviate.__init__ span for client
	// construction.
	ConnectionSpan bool `yaml:"connection_span"`
}

// DemoConfig drives the demo workload.
type DemoConfig struct {
	Collection string   `yaml:"collection" validate:"weaviate_collection"`
	Vectorizer string   `yaml:"vectorizer"`
	Queries    []string `yaml:"queries" validate:"min=1,dive,required"`
	Limit      int      `yaml:"limit" validate:"min=1,max=100"`
	Workers    int      `yaml:"workers" validate:"min=1,max=64"`
	RPS        float64  `yaml:"rps" validate:"gt=0"`

	// ReadyTimeout bounds the wait for the readiness endpoint.
	ReadyTimeout time.Duration `yaml:"ready_timeout" validate:"gt=0"`

	// Keep leaves the collection in place after the run.
	Keep bool `yaml:"keep"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json auto"`
}

// DefaultConfig returns a configuration for a local Weaviate with the
// text2vec module disabled.
func DefaultConfig() Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = "weaviatetrace"
	return Config{
		Weaviate: WeaviateConfig{
			URL: "http://localhost:8080",
		},
		Telemetry: tcfg,
		Demo: DemoConfig{
			Collection: "TraceDemo",
			Vectorizer: "none",
			Queries:    []string{"vector databases", "distributed tracing"},
			Limit:      5,
			Workers:    4,
			RPS:        10,

			ReadyTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

var validate = newValidator()

// newValidator registers the Weaviate name rules as validator tags.
func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("weaviate_collection", func(fl validator.FieldLevel) bool {
		return validation.ValidateCollectionName(fl.Field().String()) == nil
	})
	if err != nil {
		panic(fmt.Sprintf("register weaviate_collection validator: %v", err))
	}
	return v
}

// Validate checks field constraints and reports every violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// LoadConfig reads path over DefaultConfig. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// newLogger builds the CLI logger from the log section.
func (c LogConfig) newLogger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(c.Format),
		Service: "weaviatetrace",
	}), nil
}
