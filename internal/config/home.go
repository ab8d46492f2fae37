package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetHome returns the filebatch home directory
// Priority order:
//  1. FILEBATCH_HOME environment variable (if set)
//  2. ~/.filebatch
//
// The directory is created if it doesn't exist
func GetHome() (string, error) {
	if home := os.Getenv("FILEBATCH_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create filebatch home directory: %w", err)
		}
		return home, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home directory: %w", err)
	}

	home := filepath.Join(userHome, ".filebatch")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create filebatch home directory: %w", err)
	}

	return home, nil
}

// GetHistoryDBPath returns the history database path
// An explicit configured path wins; otherwise $FILEBATCH_HOME/history.db
func GetHistoryDBPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	home, err := GetHome()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "history.db"), nil
}
