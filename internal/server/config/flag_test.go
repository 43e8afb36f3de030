package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name        string
		args        []string
		start       Config
		expected    *Config
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-l", "127.0.0.1:8081", "-b", "sqlite", "-d", "db",
				"-s", "secret", "-t", "1", "-r", "3", "-o", "http://otel:4318",
			},
			expected: &Config{
				EndpointAddrGRPC:             "127.0.0.1:9090",
				EndpointAddrHTTP:             "127.0.0.1:8081",
				DatabaseDriver:               "sqlite",
				DatabaseDSN:                  "db",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  1 * time.Minute,
				RefreshTokenValidityDuration: 3 * time.Minute,
				OTLPEndpoint:                 "http://otel:4318",
			},
		},
		{
			name:     "unset duration flags keep sub-minute values",
			args:     []string{"cmd", "-s", "k"},
			start:    Config{AccessTokenValidityDuration: 90 * time.Second},
			expected: &Config{SecretKey: "k", AccessTokenValidityDuration: 90 * time.Second},
		},
		{
			name:     "foreign flags are ignored",
			args:     []string{"cmd", "-test.v", "-c", "cfg.json", "-d", "db"},
			expected: &Config{DatabaseDSN: "db"},
		},
		{
			name:        "bad int panics",
			args:        []string{"cmd", "-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := tt.start

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(&config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(&config) })
			assert.Empty(t, cmp.Diff(tt.expected, &config))
		})
	}
}
