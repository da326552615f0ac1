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

	"github.com/AleutianAI/weaviate-otel/pkg/logging"
	"github.com/AleutianAI/weaviate-otel/pkg/ux"
	"github.com/spf13/cobra"
)

// cliState is shared by every subcommand. PersistentPreRunE fills it.
type cliState struct {
	configPath string
	logLevel   string
	output     string

	cfg     Config
	logger  *logging.Logger
	printer *ux.Printer
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "weaviatetrace",
		Short: "OpenTelemetry tracing for the Weaviate client",
		Long: `weaviatetrace lists the Weaviate call sites the instrumentation
traces and runs a traced demo workload against a Weaviate instance.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if st.logger != nil {
				_ = st.logger.Close()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&st.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&st.logLevel, "log-level", "", "log level override (debug|info|warn|error)")
	flags.StringVarP(&st.output, "output", "o", "", "output style (rich|plain|machine), detected when empty")

	rootCmd.AddCommand(
		newMappingCmd(st),
		newVersionCmd(st),
		newDemoCmd(st),
	)
	return rootCmd
}

func (st *cliState) init(cmd *cobra.Command) error {
	cfg, err := LoadConfig(st.configPath)
	if err != nil {
		return err
	}
	if st.logLevel != "" {
		cfg.Log.Level = st.logLevel
	}
	logger, err := cfg.Log.newLogger()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	mode := ux.DetectMode(out)
	if st.output != "" {
		m, ok := ux.ParseMode(st.output)
		if !ok {
			return fmt.Errorf("unknown output style %q", st.output)
		}
		mode = m
	}

	st.cfg = cfg
	st.logger = logger
	st.printer = ux.NewPrinter(out, mode)
	return nil
}
