// Copyright 2025 SCION Association
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command nmctl loads a NuevoMatch classifier image and runs headers
// through it from the command line, for offline inspection and
// benchmarking of a built image without wiring up a host NIC.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/theojepsen/nuevomatch/pkg/log"
)

func main() {
	executable := filepath.Base(os.Args[0])
	cmd := &cobra.Command{
		Use:   executable,
		Short: "NuevoMatch classifier inspection tool",
		Args:  cobra.NoArgs,
		// Silence cobra's own error printing; we print it ourselves below.
		// See https://github.com/spf13/cobra/issues/340.
		SilenceErrors: true,
	}

	cmd.AddCommand(newClassifyCmd(), newVersionCmd())

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nmctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "nmctl (NuevoMatch)")
			return nil
		},
	}
}

func initLogging(level string) {
	cfg := log.Config{}
	cfg.Console.Level = level
	if err := log.Setup(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to configure logging: %s\n", err)
	}
}
