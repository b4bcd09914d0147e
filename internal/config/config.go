package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/zmcp/civicrm-mcp/internal/constants"
)

// Configuration errors that stop the process before it serves requests
var (
	ErrMissingAPIKey  = errors.New("CiviCRM API key not provided. Use --api-key or the CIVICRM_API_KEY environment variable")
	ErrMissingBaseURL = errors.New("CiviCRM base URL not provided. Use --base-url or the CIVICRM_BASE_URL environment variable")
)

// Config holds all configuration options for the CiviCRM MCP bridge
type Config struct {
	// Remote site
	BaseURL string        `mapstructure:"base_url"`
	APIPath string        `mapstructure:"api_path"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Credentials, forwarded as-is
	APIKey  string `mapstructure:"api_key"`
	SiteKey string `mapstructure:"site_key"`

	// Tool surface
	ReadOnly     bool     `mapstructure:"read_only"`
	Tools        string   `mapstructure:"tools"`
	AllowedTools []string // Parsed from Tools
	SortTools    bool     `mapstructure:"sort_tools"`
	DefaultLimit int      `mapstructure:"default_limit"`

	// Transport
	Transport string `mapstructure:"transport"`
	HTTPAddr  string `mapstructure:"http_addr"`
	HTTPToken string `mapstructure:"http_token"`

	// Output and debugging
	Verbose  bool `mapstructure:"verbose"`
	Debug    bool `mapstructure:"debug"`
	Trace    bool `mapstructure:"trace"`
	TraceMCP bool `mapstructure:"trace_mcp"`
}

// Validate checks the settings required to serve requests and fills defaults.
// A missing API key or base URL is fatal.
func (c *Config) Validate() error {
	if c.Debug {
		c.Verbose = true
	}

	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}

	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%s: %q (expected http(s)://host/...)", constants.ErrInvalidBaseURL, c.BaseURL)
	}

	if c.APIPath == "" {
		c.APIPath = constants.DefaultAPIPath
	}
	if c.Timeout <= 0 {
		c.Timeout = constants.DefaultTimeout * time.Second
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = constants.DefaultLimit
	}
	if c.DefaultLimit > constants.MaxLimit {
		c.DefaultLimit = constants.MaxLimit
	}
	if c.Transport == "" {
		c.Transport = "stdio"
	}
	if c.Transport != "stdio" && c.Transport != "http" {
		return fmt.Errorf("unknown transport %q (expected stdio or http)", c.Transport)
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = constants.DefaultHTTPAddr
	}

	c.AllowedTools = parseCommaSeparated(c.Tools)
	return nil
}

// HasSiteKey returns true if a site key should be sent alongside the API key
func (c *Config) HasSiteKey() bool {
	return c.SiteKey != ""
}

// AuthDescription summarises the configured credentials for trace output
func (c *Config) AuthDescription() string {
	if c.HasSiteKey() {
		return "bearer api key + site key"
	}
	return "bearer api key"
}

// DecodeHook is used when unmarshalling flags and environment into Config.
// Durations take Go syntax ("30s", "2m") or a bare number of seconds.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func secondsToDurationHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(data.(string)))
	if err != nil {
		return data, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseCommaSeparated(input string) []string {
	var result []string
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
