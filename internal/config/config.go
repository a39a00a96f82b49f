package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	configFileName = "litetable.conf"
	litetableDir   = ".litetable"
)

// Config holds the LiteTable connection settings shared by clients and the in-memory server.
type Config struct {
	ServerAddress string
	ServerPort    int
	// ServerCert is the PEM certificate used to verify the server. Empty means plaintext.
	ServerCert string
	Debug      bool
}

// Dir returns the path to the LiteTable directory in the user's home directory.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, litetableDir), nil
}

// NewConfig loads litetable.conf from the LiteTable directory.
func NewConfig() (*Config, error) {
	liteTableDir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to get LiteTable directory: %w", err)
	}

	configPath := filepath.Join(liteTableDir, configFileName)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("LiteTable is not installed or configuration file not found")
	}
	return Load(configPath)
}

// Load reads a litetable.conf style file: key=value lines, # comments. Unknown keys are ignored
// so clients can share the server's file. A relative server_cert is resolved against the
// file's directory.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := &Config{
		ServerAddress: "127.0.0.1",
		ServerPort:    9443,
	}
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "server_address":
			config.ServerAddress = value
		case "server_port":
			config.ServerPort, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid server port value: %w", err)
			}
		case "server_cert":
			if value != "" && !filepath.IsAbs(value) {
				value = filepath.Join(filepath.Dir(path), value)
			}
			config.ServerCert = value
		case "debug":
			config.Debug = value == "true"
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return config, nil
}
