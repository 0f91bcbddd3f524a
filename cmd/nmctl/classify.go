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

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theojepsen/nuevomatch/classifier"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

func newClassifyCmd() *cobra.Command {
	v := viper.New()
	var headerFlags []string

	cmd := &cobra.Command{
		Use:   "classify <image-file>",
		Short: "Classify one or more packet headers against a built image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(v.GetString("log-level"))

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}

			cfg := classifier.Config{
				NumCores:      1,
				MaxSubsets:    -1,
				RemainderType: v.GetString("remainder-type"),
			}
			engine, err := classifier.Load(data, cfg)
			if err != nil {
				return fmt.Errorf("loading image: %w", err)
			}

			headers, err := parseHeaders(headerFlags)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"header", "priority", "action"})
			for _, h := range headers {
				out := engine.Classify(h)
				table.Append([]string{formatHeader(h), strconv.Itoa(int(out.Priority)), strconv.Itoa(int(out.Action))})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&headerFlags, "header", nil,
		`comma-separated u32 header fields, e.g. --header "10,20,30"; repeatable`)
	cmd.Flags().String("remainder-type", "cutsplit", `remainder classifier to rebuild with, if needed ("cutsplit" or "tuplemerge")`)
	cmd.Flags().String("log-level", "info", "console log level")
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func parseHeaders(flags []string) ([]rule.Header, error) {
	headers := make([]rule.Header, 0, len(flags))
	for _, raw := range flags {
		parts := strings.Split(raw, ",")
		header := make(rule.Header, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parsing header field %q: %w", p, err)
			}
			header[i] = uint32(v)
		}
		headers = append(headers, header)
	}
	return headers, nil
}

func formatHeader(h rule.Header) string {
	parts := make([]string, len(h))
	for i, v := range h {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ",")
}
