package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	appName  = "chaingate"
	fileName = appName + ".yaml"

	// EnvConfigPath names an explicit config file, searched before anything else.
	EnvConfigPath = "CHAINGATE_CONFIG"
)

// varRef matches ${NAME} and ${NAME:-fallback}. A backslash escapes a
// closing brace inside the fallback.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse substitutes environment references in raw, then decodes it.
// Every reference without a value or fallback is reported at once.
func Parse(raw []byte) (*Config, error) {
	expanded, missing := substitute(raw, os.LookupEnv)
	if len(missing) > 0 {
		return nil, fmt.Errorf("unset environment variables: %s", strings.Join(missing, ", "))
	}

	cfg := new(Config)
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return cfg, nil
}

func substitute(raw []byte, lookup func(string) (string, bool)) ([]byte, []string) {
	var missing []string
	out := varRef.ReplaceAllFunc(raw, func(ref []byte) []byte {
		m := varRef.FindSubmatch(ref)
		name := string(m[1])
		if v, ok := lookup(name); ok {
			return []byte(v)
		}
		if m[2] != nil {
			return m[2]
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return ref
	})
	slices.Sort(missing)
	return out, missing
}

// SearchPaths lists where ResolvePath looks, in order: $CHAINGATE_CONFIG,
// the user config dir ($XDG_CONFIG_HOME or ~/.config), then the working
// directory.
func SearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(xdg, appName, fileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, fileName))
	}
	return append(paths, fileName)
}

// ResolvePath returns the first existing file among SearchPaths.
func ResolvePath() (string, error) {
	paths := SearchPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %s)", strings.Join(paths, ", "))
}

// DefaultDataDir is $XDG_DATA_HOME/chaingate, or ~/.local/share/chaingate.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}
