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
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Connection is the server address a client talks to.
//
// Description:
//
//	The zero value means "unknown". Host is empty when absent and Port is
//	0 when absent; a URL without an explicit port yields an absent port,
//	not the scheme default. Values are immutable once built and are bound
//	to the transport or interceptor of the client they describe.
type Connection struct {
	Host string
	Port int
}

// HasHost reports whether the host is known.
func (c Connection) HasHost() bool { return c.Host != "" }

// HasPort reports whether the port is known.
func (c Connection) HasPort() bool { return c.Port > 0 }

// String returns "host:port", "host" or "".
func (c Connection) String() string {
	if !c.HasPort() {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ParseURL extracts host and port from a server URL.
//
// Description:
//
//	Input without a scheme is treated as "http://<input>". Malformed input
//	yields the zero Connection; parsing never fails the caller.
//
// Example:
//
//	ParseURL("http://localhost:8080") // {Host: "localhost", Port: 8080}
//	ParseURL("weaviate.local")        // {Host: "weaviate.local"}
func ParseURL(raw string) Connection {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Connection{}
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Connection{}
	}

	conn := Connection{Host: u.Hostname()}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err == nil && port > 0 && port <= 65535 {
			conn.Port = port
		}
	}
	return conn
}

// connectionFromHostPort parses a bare "host:port" or "host" as used by
// gRPC targets.
func connectionFromHostPort(hostport string) Connection {
	if hostport == "" {
		return Connection{}
	}
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return Connection{Host: hostport}
	}
	conn := Connection{Host: host}
	if p, err := strconv.Atoi(port); err == nil && p > 0 {
		conn.Port = p
	}
	return conn
}

type connectionKey struct{}

// ContextWithConnection returns a context carrying conn for calls made
// through Call or Intercept that have no connection of their own.
func ContextWithConnection(ctx context.Context, conn Connection) context.Context {
	return context.WithValue(ctx, connectionKey{}, conn)
}

// ConnectionFromContext returns the Connection stored by
// ContextWithConnection, if any.
func ConnectionFromContext(ctx context.Context) (Connection, bool) {
	conn, ok := ctx.Value(connectionKey{}).(Connection)
	return conn, ok
}
