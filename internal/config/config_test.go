package config

import (
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		errText string
	}{
		{
			name:    "missing api key is fatal",
			cfg:     Config{BaseURL: "https://crm.example.org"},
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "missing base url is fatal",
			cfg:     Config{APIKey: "key"},
			wantErr: ErrMissingBaseURL,
		},
		{
			name:    "api key checked before base url",
			cfg:     Config{},
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "base url without scheme",
			cfg:     Config{APIKey: "key", BaseURL: "crm.example.org"},
			errText: "invalid base URL",
		},
		{
			name:    "unknown transport",
			cfg:     Config{APIKey: "key", BaseURL: "https://crm.example.org", Transport: "grpc"},
			errText: "unknown transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
		})
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := Config{
		APIKey:  "key",
		BaseURL: "https://crm.example.org/",
		Tools:   "search_*, get_contact ,,",
		Debug:   true,
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "civicrm/ajax/api4", cfg.APIPath)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 25, cfg.DefaultLimit)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"search_*", "get_contact"}, cfg.AllowedTools)
	assert.True(t, cfg.Verbose, "--debug implies --verbose")
}

func TestValidateCapsDefaultLimit(t *testing.T) {
	cfg := Config{APIKey: "key", BaseURL: "http://localhost", DefaultLimit: 10000}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.DefaultLimit)
}

func TestAuthDescription(t *testing.T) {
	cfg := Config{APIKey: "key"}
	assert.Equal(t, "bearer api key", cfg.AuthDescription())
	assert.False(t, cfg.HasSiteKey())

	cfg.SiteKey = "site"
	assert.Equal(t, "bearer api key + site key", cfg.AuthDescription())
	assert.True(t, cfg.HasSiteKey())
}

func TestDecodeHookTimeout(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "30", want: 30 * time.Second},
		{input: " 45 ", want: 45 * time.Second},
		{input: "30s", want: 30 * time.Second},
		{input: "1m30s", want: 90 * time.Second},
		{input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var cfg Config
			decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				DecodeHook:       DecodeHook(),
				WeaklyTypedInput: true,
				Result:           &cfg,
			})
			require.NoError(t, err)

			err = decoder.Decode(map[string]interface{}{"timeout": tt.input, "base_url": "https://crm.example.org"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Timeout)
			assert.Equal(t, "https://crm.example.org", cfg.BaseURL)
		})
	}
}
