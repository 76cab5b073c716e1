package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func missingFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(missingFile(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Groq.DefaultModel != "llama-3.3-70b-versatile" {
			t.Errorf("Load() default model = %q", cfg.Groq.DefaultModel)
		}
		if cfg.Chain.GasLimit != 500000 {
			t.Errorf("Load() gas limit = %d, want 500000", cfg.Chain.GasLimit)
		}
		if cfg.Server.RequestTimeout != 60*time.Second {
			t.Errorf("Load() request timeout = %v, want 60s", cfg.Server.RequestTimeout)
		}
		if cfg.Storage.Type != "none" {
			t.Errorf("Load() storage type = %q, want none", cfg.Storage.Type)
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("GROQTALES_SERVER__PORT", "9000")

		cfg, err := Load(missingFile(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
	})

	t.Run("well known env vars fill secrets", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "gsk_test")
		t.Setenv("PRIVATE_KEY", "  0xabc  ")

		cfg, err := Load(missingFile(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Groq.APIKey != "gsk_test" {
			t.Errorf("Load() api key = %q, want gsk_test", cfg.Groq.APIKey)
		}
		if cfg.Chain.PrivateKey != "0xabc" {
			t.Errorf("Load() private key = %q, want trimmed 0xabc", cfg.Chain.PrivateKey)
		}
	})

	t.Run("yaml file with substitution", func(t *testing.T) {
		t.Setenv("TEST_RPC", "https://rpc.example")
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := `
server:
  port: 7070
chain:
  rpc_url: ${TEST_RPC}
  gas_limit: 300000
storage:
  type: sqlite
  sqlite:
    path: /tmp/stories.db
auth:
  api_key_hashes:
    - deadbeef
`
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 7070 {
			t.Errorf("port = %d, want 7070", cfg.Server.Port)
		}
		if cfg.Chain.RPCURL != "https://rpc.example" {
			t.Errorf("rpc url = %q", cfg.Chain.RPCURL)
		}
		if cfg.Chain.GasLimit != 300000 {
			t.Errorf("gas limit = %d, want 300000", cfg.Chain.GasLimit)
		}
		if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/stories.db" {
			t.Errorf("storage = %+v", cfg.Storage)
		}
		if len(cfg.Auth.APIKeyHashes) != 1 || cfg.Auth.APIKeyHashes[0] != "deadbeef" {
			t.Errorf("api key hashes = %v", cfg.Auth.APIKeyHashes)
		}
	})

	t.Run("unknown storage type", func(t *testing.T) {
		t.Setenv("GROQTALES_STORAGE__TYPE", "postgres")

		if _, err := Load(missingFile(t)); err == nil {
			t.Fatal("Load() expected error for unknown storage type")
		}
	})
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
