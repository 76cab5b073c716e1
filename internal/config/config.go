// Package config loads the service configuration from config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. GROQTALES_SERVER__PORT.
const EnvPrefix = "GROQTALES_"

// DefaultPath is read when Load is given an empty path.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Groq      GroqConfig      `koanf:"groq"`
	Chain     ChainConfig     `koanf:"chain"`
	Metadata  MetadataConfig  `koanf:"metadata"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// StreamTimeout bounds SSE responses, which outlive ordinary requests.
	StreamTimeout time.Duration `koanf:"stream_timeout"`
}

type GroqConfig struct {
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	DefaultModel    string        `koanf:"default_model"`
	Timeout         time.Duration `koanf:"timeout"`
	MaxPromptTokens int           `koanf:"max_prompt_tokens"`
	Temperature     float32       `koanf:"temperature"`
	MaxTokens       int           `koanf:"max_tokens"`
}

type ChainConfig struct {
	RPCURL          string `koanf:"rpc_url"`
	PrivateKey      string `koanf:"private_key"`
	ContractAddress string `koanf:"contract_address"`
	GasLimit        uint64 `koanf:"gas_limit"`
	// ConfirmTimeout bounds the wait for a mint receipt.
	ConfirmTimeout time.Duration `koanf:"confirm_timeout"`
}

type MetadataConfig struct {
	// UploadURL is a pinning endpoint. Empty embeds the document as a data: URI.
	UploadURL     string        `koanf:"upload_url"`
	APIKey        string        `koanf:"api_key"`
	GatewayPrefix string        `koanf:"gateway_prefix"`
	Timeout       time.Duration `koanf:"timeout"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	// APIKeyHashes are hex SHA-256 digests of keys allowed to call the mint
	// endpoints. Empty leaves them open.
	APIKeyHashes []string `koanf:"api_key_hashes"`
}

type TelemetryConfig struct {
	Tracing     bool   `koanf:"tracing"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.request_timeout":  "60s",
	"server.stream_timeout":   "5m",
	"groq.api_key":            "${GROQ_API_KEY}",
	"groq.base_url":           "https://api.groq.com/openai/v1",
	"groq.default_model":      "llama-3.3-70b-versatile",
	"groq.timeout":            "60s",
	"groq.max_prompt_tokens":  4000,
	"groq.temperature":        0.7,
	"groq.max_tokens":         2048,
	"chain.rpc_url":           "${RPC_URL}",
	"chain.private_key":       "${PRIVATE_KEY}",
	"chain.contract_address":  "${CONTRACT_ADDRESS}",
	"chain.gas_limit":         500000,
	"chain.confirm_timeout":   "2m",
	"metadata.gateway_prefix": "ipfs://",
	"metadata.timeout":        "30s",
	"storage.type":            "none",
	"storage.sqlite.path":     "groqtales.db",
	"telemetry.service_name":  "groqtales-server",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), applies GROQTALES_ environment
// overrides and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Environment variables override the file
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	for _, s := range []*string{
		&cfg.Groq.APIKey,
		&cfg.Chain.RPCURL,
		&cfg.Chain.PrivateKey,
		&cfg.Chain.ContractAddress,
		&cfg.Metadata.UploadURL,
		&cfg.Metadata.APIKey,
	} {
		*s = strings.TrimSpace(substituteEnvVars(*s))
	}

	switch cfg.Storage.Type {
	case "", "none", "memory", "sqlite":
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
