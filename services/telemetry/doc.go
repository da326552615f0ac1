// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry sets up the OpenTelemetry SDK for binaries that use the
// Weaviate instrumentation, and holds the small span helpers the
// instrumentation itself relies on.
//
// The instrumentation never configures the SDK on its own. A program that
// wants spans exported calls Init once at startup; libraries only use the
// OTel API and whatever providers the program installed.
//
// # Trace Backend (default: OTLP over gRPC)
//
// Any OTLP receiver works (Jaeger 1.35+, the OTel Collector, Tempo). OTLP
// over HTTP and a stdout pretty-printer are also available.
//
// # Metrics Backend (default: Prometheus)
//
// The Prometheus exporter registers with the default registry; expose
// MetricsHandler() on a /metrics endpoint.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(ctx)
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, otlphttp, stdout, or none (default: otlp)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - OTEL_SERVICE_NAME: service name (default: weaviatetrace)
//   - ALEUTIAN_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init() returns.
package telemetry
