package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		want    Config
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: Config{Addr: ":8080", LogLevel: "info"},
		},
		{
			name: "PORT fallback",
			env:  map[string]string{"PORT": "9000"},
			want: Config{Addr: ":9000", LogLevel: "info"},
		},
		{
			name: "explicit values",
			env: map[string]string{
				"LOTTERY_ADDR":            "127.0.0.1:7000",
				"LOTTERY_LOG_LEVEL":       "DEBUG",
				"LOTTERY_ALLOWED_ORIGINS": "localhost:*, example.com ,",
			},
			want: Config{
				Addr:           "127.0.0.1:7000",
				LogLevel:       "debug",
				AllowedOrigins: []string{"localhost:*", "example.com"},
			},
		},
		{
			name:    "bad log level",
			env:     map[string]string{"LOTTERY_LOG_LEVEL": "chatty"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromEnv(envMap(tc.env))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOTTERY_ADDR=:7777\n"), 0o600))

	t.Setenv("LOTTERY_ADDR", "")
	os.Unsetenv("LOTTERY_ADDR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Addr)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}
