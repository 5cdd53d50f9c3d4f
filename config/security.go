package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxConfigSize = 1 << 20
	maxJSONDepth  = 32
	maxEnvVarLen  = 4096
	maxPathLen    = 4096
)

var configExtensions = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// checkConfigPath rejects empty, oversized, traversing or non-config paths
func checkConfigPath(path string) error {
	switch {
	case path == "":
		return stderrors.New("empty config path")
	case len(path) > maxPathLen:
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	case !configExtensions[strings.ToLower(filepath.Ext(path))]:
		return fmt.Errorf("only JSON or YAML config files allowed: %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve %s: %w", path, err)
	}
	if filepath.IsAbs(path) {
		return nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot get working directory: %w", err)
	}
	if rel, err := filepath.Rel(cwd, abs); err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %s resolves outside the working directory", path)
	}
	return nil
}

// readConfigFile reads a regular config file of bounded size
func readConfigFile(path string) ([]byte, error) {
	if err := checkConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}
	return os.ReadFile(path)
}

// writeConfigFile writes owner-only since the file may hold the client secret
func writeConfigFile(path string, data []byte) error {
	if err := checkConfigPath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config data too large: %d bytes", len(data))
	}
	return os.WriteFile(path, data, 0o600)
}

func checkEnvValue(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("%s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("null byte in %s", key)
	}
	return nil
}

// checkJSONDepth bounds nesting before the document is decoded
func checkJSONDepth(data []byte) error {
	depth := 0
	inString, escaped := false, false
	for _, b := range data {
		switch {
		case escaped:
			escaped = false
		case inString && b == '\\':
			escaped = true
		case b == '"':
			inString = !inString
		case inString:
		case b == '{' || b == '[':
			if depth++; depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: more than %d levels", maxJSONDepth)
			}
		case b == '}' || b == ']':
			if depth--; depth < 0 {
				return stderrors.New("malformed JSON: unbalanced brackets")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("malformed JSON: %d unclosed brackets", depth)
	}
	return nil
}
