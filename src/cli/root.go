// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/logger"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/toolclient"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	callArgs   string
	callWaitMs int
)

// Execute runs the root command, printing any error in red to stderr
// before returning it so the caller can choose the exit code.
func Execute(ctx context.Context, version string, log logger.Logger) error {
	rootCmd := NewRootCmd(version, log)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		return err
	}
	return nil
}

// NewRootCmd builds the CLI command tree for driving tool servers:
// tools, call, ping, and manifest, all keyed by logical server name from
// the host configuration.
func NewRootCmd(version string, log logger.Logger) *cobra.Command {
	exe := posix.GetExecutableName()
	rootCmd := &cobra.Command{
		Use:     exe,
		Short:   "Host-side runtime for subprocess tool servers",
		Version: version,
		Example: fmt.Sprintf(`  %s tools audit --config servers.yaml
  %s call audit check_links --args '{"url":"https://example.com"}'
  %s ping audit`, exe, exe, exe),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"host configuration file mapping server names to commands (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"write runtime diagnostics to stderr")

	rootCmd.AddCommand(
		newToolsCmd(log),
		newCallCmd(log),
		newPingCmd(log),
		newManifestCmd(log),
	)
	return rootCmd
}

// openRegistry loads the host configuration and wraps it in a registry.
// Diagnostics go to stderr so stdout stays reserved for results; they are
// suppressed unless --verbose is set.
func openRegistry() (*toolclient.Registry, error) {
	lookup, err := toolclient.LoadServerConfigs(configPath)
	if err != nil {
		return nil, err
	}
	return toolclient.NewRegistry(lookup, logger.NewMCPLogger(os.Stderr, !verbose)), nil
}

// newToolsCmd lists a server's tool catalog as a markdown table.
func newToolsCmd(log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "tools <server>",
		Short: "List the tools a server exposes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			defer reg.CloseAll()

			name := args[0]
			if err := reg.EnsureReady(cmd.Context(), name); err != nil {
				return err
			}
			tools, err := reg.ListTools(cmd.Context(), name)
			if err != nil {
				return err
			}
			if len(tools) == 0 {
				log.Printf("server %s exposes no tools", name)
				return nil
			}

			log.Println(renderToolTable(tools))
			return nil
		},
	}
}

// renderToolTable renders the catalog as a markdown table.
func renderToolTable(tools []toolclient.ToolInfo) string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"Tool", "Description", "Input Schema"})

	var rows [][]string
	for _, t := range tools {
		schema := "(any object)"
		if len(t.InputSchema) > 0 {
			schema = compactJSON(t.InputSchema)
		}
		rows = append(rows, []string{t.Name, t.Description, schema})
	}
	table.Bulk(rows)
	table.Render()
	return buf.String()
}

// newCallCmd invokes one tool and prints its result as indented JSON.
func newCallCmd(log logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <server> <tool>",
		Short: "Call a tool and print its result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			defer reg.CloseAll()

			var toolArgs any
			if err := json.Unmarshal([]byte(callArgs), &toolArgs); err != nil {
				return fmt.Errorf("invalid --args JSON: %w", err)
			}

			timeout := time.Duration(callWaitMs) * time.Millisecond
			result, err := reg.CallTool(cmd.Context(), args[0], args[1], toolArgs, timeout)
			if err != nil {
				return err
			}

			log.Println(indentJSON(result))
			return nil
		},
	}
	cmd.Flags().StringVarP(&callArgs, "args", "a", "{}", "tool arguments as a JSON object")
	cmd.Flags().IntVarP(&callWaitMs, "timeout", "t", 0, "per-call timeout in milliseconds (0 uses the default)")
	return cmd
}

// newPingCmd round-trips a ping and reports the latency.
func newPingCmd(log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "ping <server>",
		Short: "Check a server's liveness and latency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			defer reg.CloseAll()

			latency, err := reg.Ping(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			log.Printf("%s %s responded in %s", color.GreenString("OK:"), args[0], latency.Round(time.Microsecond))
			return nil
		},
	}
}

// newManifestCmd fetches and prints a server's manifest metadata.
func newManifestCmd(log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <server>",
		Short: "Print a server's manifest metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			defer reg.CloseAll()

			raw, err := reg.Manifest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			log.Println(indentJSON(raw))
			return nil
		},
	}
}

// compactJSON renders raw JSON on one line, falling back to the input on
// malformed data.
func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// indentJSON pretty-prints raw JSON, falling back to the input on
// malformed data.
func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
