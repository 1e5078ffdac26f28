// Package util provides utility functions for the oauth-precommit CLI.
// It includes helper functions for logging configuration, file system operations,
// and other common utilities used throughout the application.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antman-dev/oauth-precommit/internal/config"
	log "github.com/sirupsen/logrus"
)

// TokenFileName is the name of the token record inside the token directory.
const TokenFileName = "tokens.json"

// SetLogLevel configures the logrus log level based on the configuration.
// It sets the log level to DebugLevel if debug mode is enabled, otherwise to InfoLevel.
func SetLogLevel(cfg *config.Config) {
	currentLevel := log.GetLevel()
	var newLevel log.Level
	if cfg.Debug {
		newLevel = log.DebugLevel
	} else {
		newLevel = log.InfoLevel
	}

	if currentLevel != newLevel {
		log.SetLevel(newLevel)
		log.Debugf("log level changed from %s to %s (debug=%t)", currentLevel, newLevel, cfg.Debug)
	}
}

// ExpandHome expands a leading tilde (~) to the user's home directory and returns a cleaned path.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		remainder := strings.TrimPrefix(path, "~")
		remainder = strings.TrimLeft(remainder, "/\\")
		if remainder == "" {
			return filepath.Clean(home), nil
		}
		normalized := strings.ReplaceAll(remainder, "\\", "/")
		return filepath.Clean(filepath.Join(home, filepath.FromSlash(normalized))), nil
	}
	return filepath.Clean(path), nil
}

// ResolveTokenDir returns the directory holding the token record: cfg.TokenDir when set,
// otherwise ~/.config/<AppName>.
func ResolveTokenDir(cfg *config.Config) (string, error) {
	if cfg.TokenDir != "" {
		return ExpandHome(cfg.TokenDir)
	}
	appName := cfg.AppName
	if appName == "" {
		appName = config.DefaultAppName
	}
	return ExpandHome(filepath.Join("~", ".config", appName))
}

// ResolveLogDir returns the directory for rotating log files. WRITABLE_PATH wins when
// set; otherwise logs live next to the token record.
func ResolveLogDir(cfg *config.Config) (string, error) {
	if base := WritablePath(); base != "" {
		return filepath.Join(base, "logs"), nil
	}
	dir, err := ResolveTokenDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// WritablePath returns the cleaned WRITABLE_PATH environment variable when it is set.
// It accepts both uppercase and lowercase variants for compatibility with existing conventions.
func WritablePath() string {
	for _, key := range []string{"WRITABLE_PATH", "writable_path"} {
		if value, ok := os.LookupEnv(key); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return filepath.Clean(trimmed)
			}
		}
	}
	return ""
}
