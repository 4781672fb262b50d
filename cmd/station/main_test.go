package main

import (
	"path/filepath"
	"testing"

	"github.com/orbit-station/station/internal/platform/config"
)

func TestResolveDSNPrecedence(t *testing.T) {
	cases := []struct {
		name string
		flag string
		cfg  func() *config.Config
		want string
	}{
		{
			name: "flag wins",
			flag: "postgres://flag",
			cfg: func() *config.Config {
				cfg := config.New()
				cfg.Database.DSN = "postgres://cfg"
				return cfg
			},
			want: "postgres://flag",
		},
		{
			name: "config dsn when flag empty",
			flag: "",
			cfg: func() *config.Config {
				cfg := config.New()
				cfg.Database.DSN = "postgres://cfg"
				return cfg
			},
			want: "postgres://cfg",
		},
		{
			name: "empty when nothing provided",
			flag: "",
			cfg: func() *config.Config {
				return config.New()
			},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resolveDSN(tc.flag, tc.cfg())
			if got != tc.want {
				t.Fatalf("resolveDSN() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetermineAddr(t *testing.T) {
	cases := []struct {
		name     string
		flagAddr string
		cfg      func() *config.Config
		want     string
	}{
		{
			name:     "flag wins",
			flagAddr: ":9090",
			cfg:      config.New,
			want:     ":9090",
		},
		{
			name:     "config host and port",
			flagAddr: "",
			cfg: func() *config.Config {
				cfg := config.New()
				cfg.Server.Host = "127.0.0.1"
				cfg.Server.Port = 9000
				return cfg
			},
			want: "127.0.0.1:9000",
		},
		{
			name:     "fallback when config has no port",
			flagAddr: "",
			cfg: func() *config.Config {
				cfg := config.New()
				cfg.Server.Port = 0
				return cfg
			},
			want: ":8080",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := determineAddr(tc.flagAddr, tc.cfg())
			if got != tc.want {
				t.Fatalf("determineAddr() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoadConfigFileSupportsYAML(t *testing.T) {
	path := filepath.Join("testdata", "config-with-dsn.yaml")
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database.DSN == "" {
		t.Fatalf("expected DSN populated from YAML config")
	}
	if cfg.Collaborators.LedgerURL == "" {
		t.Fatalf("expected collaborators.ledger_url populated from YAML config")
	}
}
