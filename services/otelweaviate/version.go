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
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ClientModulePath is the module path of the instrumented client library.
const ClientModulePath = "github.com/weaviate/weaviate-go-client/v5"

// DetectVersion maps a client version string to an APIVersion.
//
// Description:
//
//	A version whose major component is 4 or greater selects V4, anything
//	else selects V3. The leading "v" is optional. Empty or unparseable
//	input falls back to V3 without error; the fallback is logged at Debug
//	when a logger is given.
//
// Inputs:
//
//	raw - Version string such as "4.4.0", "v5.5.0" or "3.26.7".
//	logger - Optional logger. May be nil.
//
// Outputs:
//
//	APIVersion - V3 or V4. Never anything else.
//
// Example:
//
//	DetectVersion("4.4.0", nil)  // V4
//	DetectVersion("garbage", nil) // V3
//
// Thread Safety: Safe for concurrent use.
func DetectVersion(raw string, logger *slog.Logger) APIVersion {
	v := strings.TrimSpace(raw)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		if logger != nil {
			logger.Debug("unrecognized client version, assuming v3 API", slog.String("version", raw))
		}
		return V3
	}

	major, err := strconv.Atoi(strings.TrimPrefix(semver.Major(v), "v"))
	if err != nil || major < 4 {
		return V3
	}
	return V4
}

// ClientModuleVersion returns the version of the client module linked
// into the running binary, or "" when build info is unavailable or the
// module is not a dependency.
func ClientModuleVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, dep := range info.Deps {
		if dep.Path != ClientModulePath {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return ""
}
