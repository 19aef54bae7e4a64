// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Secret encoders.
const (
	EncoderBase64 = "base64"
	EncoderSealed = "sealed"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// secretKeyLen is the key size of XChaCha20-Poly1305.
const secretKeyLen = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	StoreBackend string
	StorePath    string
	Encoder      string
	SecretKey    []byte
	ListenAddr   string
	LogLevel     slog.Level
	LogFormat    string
	LogFile      string
}

// LoadEnvFile sets variables from a dotenv file without overriding variables
// already present in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional: CREDVAULT_STORE_BACKEND (file), CREDVAULT_STORE_PATH
// (credvault.json, or credvault.db for sqlite), CREDVAULT_ENCODER (base64),
// CREDVAULT_LISTEN_ADDR (127.0.0.1:8080), CREDVAULT_LOG_LEVEL (info),
// CREDVAULT_LOG_FORMAT (text) and CREDVAULT_LOG_FILE (stderr when unset).
// CREDVAULT_SECRET_KEY is required when the sealed encoder is selected.
func Load() (*Config, error) {
	backend := BackendFile
	if v, ok := os.LookupEnv("CREDVAULT_STORE_BACKEND"); ok && v != "" {
		backend = strings.ToLower(strings.TrimSpace(v))
	}
	var storePath string
	switch backend {
	case BackendFile:
		storePath = "credvault.json"
	case BackendSQLite:
		storePath = "credvault.db"
	default:
		return nil, fmt.Errorf("CREDVAULT_STORE_BACKEND must be %q or %q, got %q", BackendFile, BackendSQLite, backend)
	}
	if v, ok := os.LookupEnv("CREDVAULT_STORE_PATH"); ok && v != "" {
		storePath = v
	}

	encoder := EncoderBase64
	if v, ok := os.LookupEnv("CREDVAULT_ENCODER"); ok && v != "" {
		encoder = strings.ToLower(strings.TrimSpace(v))
	}
	if encoder != EncoderBase64 && encoder != EncoderSealed {
		return nil, fmt.Errorf("CREDVAULT_ENCODER must be %q or %q, got %q", EncoderBase64, EncoderSealed, encoder)
	}

	var secretKey []byte
	if v := os.Getenv("CREDVAULT_SECRET_KEY"); v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("CREDVAULT_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != secretKeyLen {
			return nil, fmt.Errorf("CREDVAULT_SECRET_KEY must be %d bytes (%d hex chars), got %d bytes",
				secretKeyLen, secretKeyLen*2, len(decoded))
		}
		secretKey = decoded
	}
	if encoder == EncoderSealed && secretKey == nil {
		return nil, errors.New("CREDVAULT_SECRET_KEY is required when CREDVAULT_ENCODER is sealed")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("CREDVAULT_LISTEN_ADDR"); ok && v != "" {
		listenAddr = v
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("CREDVAULT_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("CREDVAULT_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	logFormat := LogFormatText
	if v, ok := os.LookupEnv("CREDVAULT_LOG_FORMAT"); ok && v != "" {
		logFormat = strings.ToLower(strings.TrimSpace(v))
	}
	if logFormat != LogFormatText && logFormat != LogFormatJSON {
		return nil, fmt.Errorf("CREDVAULT_LOG_FORMAT must be %q or %q, got %q", LogFormatText, LogFormatJSON, logFormat)
	}

	return &Config{
		StoreBackend: backend,
		StorePath:    storePath,
		Encoder:      encoder,
		SecretKey:    secretKey,
		ListenAddr:   listenAddr,
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		LogFile:      os.Getenv("CREDVAULT_LOG_FILE"),
	}, nil
}
