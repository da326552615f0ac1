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
	"github.com/AleutianAI/weaviate-otel/services/otelweaviate"
	"github.com/spf13/cobra"
)

func newVersionCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the client module version and the API the instrumentation selects",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			raw := otelweaviate.ClientModuleVersion()
			shown := raw
			if shown == "" {
				shown = "unknown"
			}
			if st.cfg.Weaviate.ClientVersion != "" {
				raw = st.cfg.Weaviate.ClientVersion
				shown += " (override " + raw + ")"
			}

			st.printer.Title("weaviatetrace")
			st.printer.KeyValue("instrumentation", otelweaviate.InstrumentationVersion)
			st.printer.KeyValue("client module", otelweaviate.ClientModulePath)
			st.printer.KeyValue("client version", shown)
			st.printer.KeyValue("api", otelweaviate.DetectVersion(raw, st.logger.Slog()).String())
		},
	}
}
