package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zmcp/civicrm-mcp/internal/bridge"
	"github.com/zmcp/civicrm-mcp/internal/config"
	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/debug"
	"github.com/zmcp/civicrm-mcp/internal/logging"
	"github.com/zmcp/civicrm-mcp/internal/transport"
	"github.com/zmcp/civicrm-mcp/internal/transport/http"
	"github.com/zmcp/civicrm-mcp/internal/transport/stdio"
)

var rootCmd = &cobra.Command{
	Use:   "civicrm-mcp",
	Short: "CiviCRM to MCP Bridge - exposes CiviCRM API v4 operations as Model Context Protocol tools",
	Long: `CiviCRM to MCP Bridge - exposes CiviCRM API v4 operations as Model Context Protocol tools.

Contacts, activities, contributions, events, memberships, groups, tags and
relationships are available as tools. Custom fields can be addressed by their
label or name; run the get_custom_fields tool to list them.

Examples:
  civicrm-mcp --base-url https://crm.example.org --api-key $KEY
  CIVICRM_BASE_URL=https://crm.example.org CIVICRM_API_KEY=... civicrm-mcp --read-only
  civicrm-mcp --transport http --http-addr 127.0.0.1:8080 --http-token secret
  civicrm-mcp --tools 'search_*,get_*' --trace`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBridge,
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"base-url":      "base_url",
	"api-path":      "api_path",
	"timeout":       "timeout",
	"api-key":       "api_key",
	"site-key":      "site_key",
	"read-only":     "read_only",
	"tools":         "tools",
	"sort-tools":    "sort_tools",
	"default-limit": "default_limit",
	"transport":     "transport",
	"http-addr":     "http_addr",
	"http-token":    "http_token",
	"verbose":       "verbose",
	"debug":         "debug",
	"trace":         "trace",
	"trace-mcp":     "trace_mcp",
}

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()

	flags := rootCmd.Flags()

	// Remote site
	flags.String("base-url", "", "CiviCRM site URL, e.g. https://crm.example.org (env CIVICRM_BASE_URL)")
	flags.String("api-path", constants.DefaultAPIPath, "API v4 path below the base URL (env CIVICRM_API_PATH)")
	flags.Duration("timeout", time.Duration(constants.DefaultTimeout)*time.Second, "Timeout for each CiviCRM API call, e.g. 30s or 2m; a bare number is seconds (env CIVICRM_TIMEOUT)")

	// Credentials
	flags.String("api-key", "", "API key of the CiviCRM user the bridge acts as (env CIVICRM_API_KEY)")
	flags.String("site-key", "", "Site key, when the site requires one (env CIVICRM_SITE_KEY)")

	// Tool surface
	flags.Bool("read-only", false, "Read-only mode: hide all tools that create, update or delete records")
	flags.Bool("ro", false, "Read-only mode (shorthand for --read-only)")
	flags.String("tools", "", "Comma-separated tool names or glob patterns to expose (e.g. 'search_*,get_contact')")
	flags.Bool("sort-tools", false, "Sort tools alphabetically instead of grouping them by entity")
	flags.Int("default-limit", constants.DefaultLimit, "Number of records returned when a tool call sets no limit")

	// Transport
	flags.String("transport", "stdio", "Transport type: 'stdio' or 'http'")
	flags.String("http-addr", constants.DefaultHTTPAddr, "HTTP server address (used with --transport http)")
	flags.String("http-token", "", "Bearer token required from HTTP clients (env CIVICRM_MCP_HTTP_TOKEN)")

	// Output and debugging
	flags.BoolP("verbose", "v", false, "Enable verbose output to stderr")
	flags.Bool("debug", false, "Alias for --verbose")
	flags.Bool("trace", false, "Register all tools, print them with the configuration and exit")
	flags.Bool("trace-mcp", false, "Write every MCP message to a JSONL trace file in the temp directory")

	for flag, key := range flagKeys {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	// Environment variables: CIVICRM_BASE_URL, CIVICRM_API_KEY, ...
	viper.SetEnvPrefix("CIVICRM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("http_token", "CIVICRM_MCP_HTTP_TOKEN")
}

// loadConfig merges flags, environment and defaults into a validated config
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg, viper.DecodeHook(config.DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if ro, _ := cmd.Flags().GetBool("ro"); ro {
		cfg.ReadOnly = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level := logging.LevelInfo
	if cfg.Verbose {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)

	if cfg.ReadOnly {
		logging.Debug("Main", "Read-only mode enabled. Create, update and delete tools are hidden.")
	}
	if len(cfg.AllowedTools) > 0 {
		logging.Debug("Main", "Filtering tools to: %v", cfg.AllowedTools)
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	civiBridge, err := bridge.NewCiviMCPBridge(cfg)
	if err != nil {
		return fmt.Errorf("failed to create CiviCRM MCP bridge: %w", err)
	}

	if cfg.Trace {
		return printTraceInfo(civiBridge)
	}

	var tracer *debug.TraceLogger
	if cfg.TraceMCP {
		tracer, err = debug.NewTraceLogger()
		if err != nil {
			logging.Error("Main", err, "Failed to create trace logger")
		} else {
			defer tracer.Close()
			logging.Info("Main", "Trace logging enabled. Output file: %s", tracer.GetFilename())
		}
	}

	handler := func(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
		return civiBridge.HandleMessage(ctx, msg)
	}

	var trans transport.Transport
	switch cfg.Transport {
	case "http":
		logging.Info("Main", "Starting HTTP transport on %s", cfg.HTTPAddr)
		if cfg.HTTPToken == "" {
			logging.Warn("Main", "No --http-token set; the MCP endpoint accepts unauthenticated requests")
		}
		httpTrans := http.New(cfg.HTTPAddr, cfg.HTTPToken, handler)
		if tracer != nil {
			httpTrans.SetTracer(tracer)
		}
		trans = httpTrans
	default:
		logging.Debug("Main", "Using stdio transport")
		stdioTrans := stdio.New(handler)
		if tracer != nil {
			stdioTrans.SetTracer(tracer)
		}
		trans = stdioTrans
	}
	civiBridge.SetTransport(trans)

	errChan := make(chan error, 1)
	go func() {
		errChan <- civiBridge.Run()
	}()

	select {
	case sig := <-sigChan:
		logging.Info("Main", "%s received, shutting down server...", sig)
		civiBridge.Stop()
		if err := trans.Close(); err != nil {
			logging.Warn("Main", "Transport close: %v", err)
		}
		return nil
	case err := <-errChan:
		return err
	}
}

func printTraceInfo(civiBridge *bridge.CiviMCPBridge) error {
	info, err := civiBridge.GetTraceInfo()
	if err != nil {
		return fmt.Errorf("failed to get trace info: %w", err)
	}
	info.BaseURL = debug.MaskURL(info.BaseURL)

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trace info: %w", err)
	}
	fmt.Println(string(data))
	fmt.Fprintf(os.Stderr, "Trace complete: %d tools registered, server not started.\n", info.TotalTools)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
