package lcu

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Credentials holds the LCU connection details parsed from the lockfile
type Credentials struct {
	ProcessName string
	PID         string
	Port        string
	Password    string
	Protocol    string
}

// BaseURL returns the client API root for these credentials
func (c *Credentials) BaseURL() string {
	return fmt.Sprintf("https://127.0.0.1:%s", c.Port)
}

// AuthHeader returns the Basic auth header value for the riot user
func (c *Credentials) AuthHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:"+c.Password))
}

// DefaultLockfilePaths returns the usual install locations for goos.
// localAppData may be empty.
func DefaultLockfilePaths(goos, localAppData string) []string {
	switch goos {
	case "windows":
		paths := []string{
			"C:/Riot Games/League of Legends/lockfile",
			"D:/Riot Games/League of Legends/lockfile",
			"C:/Program Files/Riot Games/League of Legends/lockfile",
			"C:/Program Files (x86)/Riot Games/League of Legends/lockfile",
		}
		for _, drive := range []string{"E:", "F:", "G:"} {
			paths = append(paths, drive+"/Riot Games/League of Legends/lockfile")
		}
		if localAppData != "" {
			paths = append(paths, filepath.Join(localAppData, "Riot Games", "League of Legends", "lockfile"))
		}
		return paths
	case "darwin":
		return []string{"/Applications/League of Legends.app/Contents/LoL/lockfile"}
	default:
		return nil
	}
}

// FindLockfile returns the first candidate path that exists
func FindLockfile(candidates []string) (string, error) {
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrLockfileNotFound
}

// ParseLockfile reads and parses the lockfile at path
func ParseLockfile(path string) (*Credentials, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	return parseLockfile(string(content))
}

// Lockfile format: LeagueClient:pid:port:password:protocol
func parseLockfile(content string) (*Credentials, error) {
	parts := strings.Split(strings.TrimSpace(content), ":")
	if len(parts) != 5 {
		return nil, fmt.Errorf("invalid lockfile format: expected 5 parts, got %d", len(parts))
	}
	if _, err := strconv.ParseUint(parts[2], 10, 16); err != nil {
		return nil, fmt.Errorf("invalid lockfile port %q", parts[2])
	}

	return &Credentials{
		ProcessName: parts[0],
		PID:         parts[1],
		Port:        parts[2],
		Password:    parts[3],
		Protocol:    parts[4],
	}, nil
}
