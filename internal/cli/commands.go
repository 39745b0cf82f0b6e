// Package cli wires the operational commands used to exercise a remote
// conversational-agent system: invoking tools, listing the catalog, probing
// agent health, and maintaining the local result cache.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/toolbridge/toolbridge/internal/resultcache"
	"github.com/toolbridge/toolbridge/internal/toolclient"
)

// NewRootCmd builds the toolbridge command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "toolbridge",
		Short:         "Exercise a remote agent's tools over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("endpoint", "", "remote agent base URL (overrides TOOLBRIDGE_AGENT_URL)")
	root.PersistentFlags().Duration("timeout", 0, "per-attempt timeout (overrides TOOLBRIDGE_CALL_TIMEOUT)")
	root.PersistentFlags().Int("retries", -1, "retry budget after the first attempt (overrides TOOLBRIDGE_MAX_RETRIES)")
	root.PersistentFlags().String("profile", "", "named profile from profiles.yaml")

	root.AddCommand(
		callCmd(),
		toolsCmd(),
		healthCmd(),
		cacheCmd(),
	)
	return root
}

func callCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a named tool on the remote agent (or the mock responder)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			tool := cmdArgs[0]
			rawArgs, _ := cmd.Flags().GetString("args")
			cached, _ := cmd.Flags().GetBool("cached")

			var args any
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return fmt.Errorf("--args must be valid JSON: %w", err)
			}

			cfg, err := resolveClientConfig(cmd)
			if err != nil {
				return err
			}
			client, err := toolclient.New(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cached {
				cache, err := openCache()
				if err != nil {
					return err
				}
				key := resultcache.Key(tool, args)
				if payload, ok := cache.Get(ctx, key); ok {
					return printRawJSON(cmd.OutOrStdout(), payload)
				}
				result, err := client.CallTool(ctx, tool, args)
				if err != nil {
					return err
				}
				if payload, err := json.Marshal(result); err == nil {
					cache.Set(ctx, key, payload)
				}
				return printJSON(cmd.OutOrStdout(), result)
			}

			result, err := client.CallTool(ctx, tool, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().String("args", "{}", "JSON argument payload for the tool")
	cmd.Flags().Bool("cached", false, "serve from the result cache when possible")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the remote agent (or the mock responder) exposes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveClientConfig(cmd)
			if err != nil {
				return err
			}
			client, err := toolclient.New(cfg)
			if err != nil {
				return err
			}
			result, err := client.CallTool(cmd.Context(), "list_tools", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func healthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the remote agent's health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, _ := cmd.Flags().GetString("url")
			if url == "" {
				cfg, err := resolveClientConfig(cmd)
				if err != nil {
					return err
				}
				url = cfg.BaseURL
			}
			if url == "" {
				return fmt.Errorf("no agent URL: set --url, --endpoint, or TOOLBRIDGE_AGENT_URL")
			}

			result := probeAgent(cmd.Context(), url)
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if result.Status != "pass" {
				return fmt.Errorf("agent health check failed")
			}
			return nil
		},
	}
	cmd.Flags().String("url", "", "agent base URL to probe (defaults to the resolved endpoint)")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the local tool-result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List cached tool results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			entries, err := cache.Entries(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove every cached tool result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			return cache.Purge(cmd.Context())
		},
	})

	return cmd
}

// resolveClientConfig layers configuration sources: environment, then the
// selected profile, then explicit flags.
func resolveClientConfig(cmd *cobra.Command) (toolclient.Config, error) {
	cfg, err := toolclient.ConfigFromEnv()
	if err != nil {
		return toolclient.Config{}, err
	}

	if name, _ := cmd.Flags().GetString("profile"); name != "" {
		profile, err := LoadProfile(name)
		if err != nil {
			return toolclient.Config{}, err
		}
		cfg = profile.apply(cfg)
	}

	if endpoint, _ := cmd.Flags().GetString("endpoint"); endpoint != "" {
		cfg.BaseURL = endpoint
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	if retries, _ := cmd.Flags().GetInt("retries"); retries >= 0 {
		cfg.MaxRetries = retries
	}
	return cfg, nil
}

func openCache() (*resultcache.Cache, error) {
	cfg, err := resultcache.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return resultcache.New(cfg)
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func printRawJSON(w io.Writer, payload []byte) error {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		_, writeErr := fmt.Fprintln(w, string(payload))
		return writeErr
	}
	return printJSON(w, value)
}
