// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package otelweaviate

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/connection"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/AleutianAI/weaviate-otel/services/telemetry"
)

// defaultClientTimeout matches weaviate.Config's documented default.
const defaultClientTimeout = 60 * time.Second

// NewClient creates a Weaviate client whose REST traffic is traced.
//
// Description:
//
//	The server address is parsed from cfg.Scheme and cfg.Host, falling
//	back to the gRPC host when the REST host is absent, and a tracing
//	transport bound to that address is installed into a copy of
//	cfg.ConnectionClient. The caller's http.Client is not modified. The
//	transport checks Enabled per request, so a client built before
//	Instrument is traced once instrumentation is enabled.
//
//	When cfg.AuthConfig is set, its handshake runs here instead of in
//	weaviate.NewClient and the resulting http.Client carries the tracing
//	transport. An oauth2.Transport keeps its type so the client still
//	refreshes tokens; tracing is installed as its Base.
//
//	With cfg.GrpcConfig set, ObjectsBatcher().Do and
//	Experimental().Search() use the client's own gRPC connection, which
//	exposes no interceptor. Those calls are not traced; wrap them with
//	Call or dial a connection with UnaryClientInterceptor.
//
//	With WithConnectionSpan(true), construction itself runs inside a
//	"db.weaviate.__init__" span carrying the server address.
//
// Inputs:
//
//	ctx - Parent context for the optional construction span.
//	cfg - Client configuration, as for weaviate.NewClient.
//
// Outputs:
//
//	*weaviate.Client - The client.
//	Connection - The server address bound to the client's transport.
//	error - Any error from the auth handshake or weaviate.NewClient.
//
// Example:
//
//	client, conn, err := inst.NewClient(ctx, weaviate.Config{
//	    Host:   "localhost:8080",
//	    Scheme: "http",
//	})
//	if err != nil {
//	    return fmt.Errorf("connect: %w", err)
//	}
//	ctx = otelweaviate.ContextWithConnection(ctx, conn)
//
// Thread Safety: Safe for concurrent use.
func (i *Instrumentor) NewClient(ctx context.Context, cfg weaviate.Config) (*weaviate.Client, Connection, error) {
	conn := configConnection(cfg)
	build := func() (*weaviate.Client, error) {
		traced, err := i.tracedConfig(cfg, conn)
		if err != nil {
			return nil, err
		}
		return weaviate.NewClient(traced)
	}

	st := i.active(ctx)
	if st == nil || !st.connectionSpan {
		client, err := build()
		return client, conn, err
	}

	attrs := append(connectionAttributes(conn), AttrDBSystem.String(DBSystemWeaviate))
	_, span := st.tracer.Start(ctx, SpanNamePrefix+"."+connectionSpanSuffix,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	client, err := build()
	telemetry.RecordError(span, err)
	return client, conn, err
}

// tracedConfig returns a copy of cfg whose ConnectionClient routes REST
// calls through the tracing transport.
func (i *Instrumentor) tracedConfig(cfg weaviate.Config, conn Connection) (weaviate.Config, error) {
	if cfg.AuthConfig != nil && cfg.ConnectionClient != nil {
		// weaviate.NewClient rejects this combination.
		return cfg, nil
	}
	cfg, err := resolveAuth(cfg)
	if err != nil {
		return cfg, err
	}

	httpClient := &http.Client{Timeout: clientTimeout(cfg)}
	if cfg.ConnectionClient != nil {
		copied := *cfg.ConnectionClient
		httpClient = &copied
	}
	if ot, ok := httpClient.Transport.(*oauth2.Transport); ok {
		wrapped := *ot
		wrapped.Base = i.Transport(ot.Base, conn)
		httpClient.Transport = &wrapped
	} else {
		httpClient.Transport = i.Transport(httpClient.Transport, conn)
	}
	cfg.ConnectionClient = httpClient

	if cfg.GrpcConfig != nil {
		i.log().Debug("gRPC batch and search calls are not traced",
			slog.String("grpc_host", cfg.GrpcConfig.Host))
	}
	return cfg, nil
}

// resolveAuth runs the AuthConfig handshake the way weaviate.NewClient
// does and returns cfg with the resulting client and headers in place of
// AuthConfig.
func resolveAuth(cfg weaviate.Config) (weaviate.Config, error) {
	if cfg.AuthConfig == nil {
		return cfg, nil
	}

	tmp := connection.NewConnection(cfg.Scheme, cfg.Host, nil, clientTimeout(cfg), cfg.Headers)
	if err := tmp.WaitForWeaviate(cfg.StartupTimeout); err != nil {
		return cfg, err
	}
	httpClient, extra, err := cfg.AuthConfig.GetAuthInfo(tmp)
	if err != nil {
		return cfg, err
	}

	headers := make(map[string]string, len(cfg.Headers)+len(extra))
	maps.Copy(headers, cfg.Headers)
	maps.Copy(headers, extra)
	if key := cfg.AuthConfig.ApiKey(); key != nil && isWeaviateCloud(cfg.Host) {
		headers["X-Weaviate-Api-Key"] = *key
		headers["X-Weaviate-Cluster-URL"] = "https://" + cfg.Host
	}

	cfg.Headers = headers
	cfg.ConnectionClient = httpClient
	cfg.AuthConfig = nil
	return cfg, nil
}

func isWeaviateCloud(host string) bool {
	lower := strings.ToLower(host)
	return strings.Contains(lower, "weaviate.io") ||
		strings.Contains(lower, "semi.technology") ||
		strings.Contains(lower, "weaviate.cloud")
}

func clientTimeout(cfg weaviate.Config) time.Duration {
	if cfg.Timeout == 0 {
		return defaultClientTimeout
	}
	return cfg.Timeout
}

// configConnection derives the server address of cfg. The REST host wins;
// the gRPC host is used when the REST host is absent.
func configConnection(cfg weaviate.Config) Connection {
	if cfg.Host != "" {
		scheme := cfg.Scheme
		if scheme == "" {
			scheme = "http"
		}
		if conn := ParseURL(scheme + "://" + cfg.Host); conn.HasHost() {
			return conn
		}
	}
	if cfg.GrpcConfig != nil {
		return connectionFromHostPort(cfg.GrpcConfig.Host)
	}
	return Connection{}
}
