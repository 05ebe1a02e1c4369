// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ProbeResult holds the outcome of one health endpoint.
type ProbeResult struct {
	Probe  string `json:"probe"`
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
	client     *http.Client
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return newStatusCmd(&statusConfig{})
}

func newStatusCmd(cfg *statusConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running backoffice server",
		Long: `Query the liveness and readiness endpoints of the server listening on
--metrics-addr. Exits non-zero when the server is not ready.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 3*time.Second, "request timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	appCfg, err := readConfig(cmd)
	if err != nil {
		return err
	}
	if appCfg.Server.MetricsAddr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "server.metrics_addr").Errorf("metrics address is disabled")
	}

	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}
	base := "http://" + dialAddr(appCfg.Server.MetricsAddr)

	results := []ProbeResult{
		probe(cmd.Context(), client, "liveness", base+"/healthz/liveness"),
		probe(cmd.Context(), client, "readiness", base+"/healthz/readiness"),
	}

	if cfg.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return oops.Code("STATUS_OUTPUT_FAILED").Wrap(err)
		}
	} else {
		formatProbeTable(cmd.OutOrStdout(), results)
	}

	for _, r := range results {
		if !r.OK {
			return oops.Code("SERVER_NOT_READY").With("probe", r.Probe).Errorf("%s probe failed", r.Probe)
		}
	}
	return nil
}

// dialAddr turns a listen address such as ":9090" into one a client can dial.
func dialAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func probe(ctx context.Context, client *http.Client, name, url string) ProbeResult {
	result := ProbeResult{Probe: name}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	resp, err := client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("failed to connect: %v", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	result.Status = resp.StatusCode
	result.Detail = strings.TrimSpace(string(body))
	result.OK = resp.StatusCode == http.StatusOK
	return result
}

func formatProbeTable(w io.Writer, results []ProbeResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROBE\tSTATE\tDETAIL")
	for _, r := range results {
		state := "ok"
		detail := r.Detail
		if !r.OK {
			state = "failing"
		}
		if r.Error != "" {
			detail = r.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Probe, state, detail)
	}
	_ = tw.Flush()
}
