package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Input limits for configuration files and environment overrides
const (
	MaxFileSize  = 10 << 20
	maxEnvLength = 10000
	maxPathLen   = 4096
)

var layerExtensions = []string{".yaml", ".yml"}

// readLayer reads one YAML layer. It refuses anything that is not a regular
// YAML file of at most MaxFileSize bytes.
func readLayer(path string) ([]byte, error) {
	switch {
	case path == "":
		return nil, fmt.Errorf("empty config path")
	case len(path) > maxPathLen:
		return nil, fmt.Errorf("config path of %d bytes exceeds %d", len(path), maxPathLen)
	case strings.ContainsRune(path, 0):
		return nil, fmt.Errorf("config path contains a NUL byte")
	case !slices.Contains(layerExtensions, strings.ToLower(filepath.Ext(path))):
		return nil, fmt.Errorf("%s: config files must end in .yaml or .yml", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	// One byte past the limit tells an oversized file from one exactly at it.
	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, MaxFileSize)
	}
	return data, nil
}

// checkEnvValue rejects override values that cannot be config text
func checkEnvValue(key, value string) error {
	if len(value) > maxEnvLength {
		return fmt.Errorf("%s: value of %d bytes exceeds %d", key, len(value), maxEnvLength)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s: value contains a NUL byte", key)
	}
	return nil
}
