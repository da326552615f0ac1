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
	"fmt"
	"strings"

	"github.com/AleutianAI/weaviate-otel/services/otelweaviate"
	"github.com/spf13/cobra"
)

func newMappingCmd(st *cliState) *cobra.Command {
	var api string

	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "List the traced Weaviate call sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseAPI(api, st)
			if err != nil {
				return err
			}

			descs := otelweaviate.Mapping(v)
			rows := make([][]string, 0, len(descs))
			for _, d := range descs {
				rows = append(rows, []string{d.FullSpanName(d.Function), d.Module, d.Name, d.Function})
			}

			st.printer.Title(fmt.Sprintf("Weaviate %s API: %d traced call sites", v, len(descs)))
			st.printer.Table([]string{"SPAN", "MODULE", "OBJECT", "FUNCTION"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&api, "api", "auto", "API table to list (v3|v4|auto)")
	return cmd
}

// parseAPI maps a flag value to an API version. "auto" detects it from the
// linked client module.
func parseAPI(s string, st *cliState) (otelweaviate.APIVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v3", "3":
		return otelweaviate.V3, nil
	case "v4", "4":
		return otelweaviate.V4, nil
	case "", "auto":
		raw := st.cfg.Weaviate.ClientVersion
		if raw == "" {
			raw = otelweaviate.ClientModuleVersion()
		}
		return otelweaviate.DetectVersion(raw, st.logger.Slog()), nil
	default:
		return 0, fmt.Errorf("unknown API version %q (want v3, v4 or auto)", s)
	}
}
